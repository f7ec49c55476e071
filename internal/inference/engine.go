package inference

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

// Engine orchestrates one inference pass over a document's chunks.  Chunks
// are processed concurrently up to the configured limit; results are
// assembled in document order regardless of completion order.
type Engine struct {
	annotations annotation.Repository
	pattern     *PatternMatcher
	duplicate   *DuplicateAdapter
	heuristic   *HeuristicClassifier
	extractor   *FieldExtractor
	provider    EmbeddingProvider
	cfg         Config
	logger      logging.Logger

	// calibration is read per chunk and swappable at runtime via
	// SetCalibration, so config hot reloads never race a running pass.
	calibration atomic.Value

	searcher     VectorSearcher
	searcherTopK int
}

// NewEngine wires the decision chain.  provider may be nil; the learned tier
// then runs without embeddings.
func NewEngine(
	annotations annotation.Repository,
	patternRules annotation.PatternRuleRepository,
	provider EmbeddingProvider,
	cfg Config,
	logger logging.Logger,
) *Engine {
	cfg = cfg.normalized()
	if !cfg.EnableSemanticSearch {
		provider = nil
	}
	e := &Engine{
		annotations: annotations,
		pattern:     NewPatternMatcher(patternRules, logger),
		duplicate:   NewDuplicateAdapter(),
		heuristic:   NewHeuristicClassifier(),
		extractor:   NewFieldExtractor(cfg.MinFieldConfidence),
		provider:    provider,
		cfg:         cfg,
		logger:      logger.Named("inference-engine"),
	}
	e.calibration.Store(cfg.Calibration)
	return e
}

// SetCalibration swaps the calibration policy at runtime.  Invalid modes are
// ignored.
func (e *Engine) SetCalibration(mode notetypes.CalibrationMode) {
	if !mode.IsValid() {
		return
	}
	e.calibration.Store(mode)
}

// chunkOutcome carries one chunk's results back to its document-order slot.
type chunkOutcome struct {
	ann    *annotation.Annotation
	expl   *annotation.ModelExplanation
	fields []*annotation.ExtractedField
}

// Infer runs the full decision chain over the document's chunks.  A chunk no
// stage is confident about stays unannotated; per-chunk failures are logged
// and never abort the document.
func (e *Engine) Infer(ctx context.Context, chunks []*annotation.Chunk, ictx *annotation.InferenceContext) (*annotation.InferenceResult, error) {
	result := &annotation.InferenceResult{
		Explanations: make(map[string]*annotation.ModelExplanation),
	}
	if len(chunks) == 0 {
		return result, nil
	}

	learned := e.buildLearnedMatcher(ctx, ictx)

	outcomes := make([]chunkOutcome, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = e.processChunk(gctx, chunk, ictx, learned)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInferenceFailed, "inference pass aborted")
	}

	var allFields []*annotation.ExtractedField
	for _, out := range outcomes {
		if out.ann != nil {
			result.Annotations = append(result.Annotations, out.ann)
			result.Explanations[out.ann.ChunkID] = out.expl
		}
		allFields = append(allFields, out.fields...)
	}
	result.ExtractedFields = DeduplicateFields(allFields)
	return result, nil
}

// buildLearnedMatcher snapshots the confirmed annotations visible at this
// request's context.  A repository failure disables the learned tier for
// this pass only.
func (e *Engine) buildLearnedMatcher(ctx context.Context, ictx *annotation.InferenceContext) *LearnedMatcher {
	var noteType, service string
	if ictx != nil {
		noteType, service = ictx.NoteType, ictx.Service
	}
	confirmed, err := e.annotations.ListConfirmed(ctx, noteType, service)
	if err != nil {
		e.logger.Warn("confirmed annotations unavailable, learned tier disabled for this pass",
			logging.Err(err))
		confirmed = nil
	}
	m := NewLearnedMatcher(confirmed, e.provider, e.cfg, e.logger)
	if e.searcher != nil {
		m.WithSearcher(e.searcher, e.searcherTopK)
	}
	return m
}

// WithRuleSearcher routes the learned tier's semantic matching through an
// external vector index for large rule snapshots.
func (e *Engine) WithRuleSearcher(s VectorSearcher, topK int) *Engine {
	e.searcher = s
	e.searcherTopK = topK
	return e
}

func (e *Engine) processChunk(ctx context.Context, chunk *annotation.Chunk, ictx *annotation.InferenceContext, learned *LearnedMatcher) chunkOutcome {
	out := chunkOutcome{}
	if chunk == nil {
		return out
	}
	if err := chunk.Validate(); err != nil {
		e.logger.Warn("skipping invalid chunk",
			logging.String("chunk_id", chunk.ID),
			logging.Err(err))
		return out
	}

	// Field extraction always runs, even for chunks that end up removed.
	out.fields = e.extractor.Extract(chunk)

	res := e.classify(ctx, chunk, ictx, learned)
	res = ApplyCriticalSafetyGuard(chunk, res)
	if res == nil {
		return out
	}

	ann := annotation.NewSystemAnnotation(chunk, res.Label)
	ann.RemoveReason = res.RemoveReason
	ann.CondenseStrategy = res.CondenseStrategy
	out.ann = ann
	out.expl = &annotation.ModelExplanation{
		Source:     res.Source,
		Confidence: res.Confidence,
		Reason:     res.Reason,
		Signals:    res.Signals,
	}
	return out
}

// classify runs the matcher chain and stops at the first confident result.
// A stage error disables that stage for the chunk, not the chain.
func (e *Engine) classify(ctx context.Context, chunk *annotation.Chunk, ictx *annotation.InferenceContext, learned *LearnedMatcher) *MatchResult {
	res, err := learned.TryMatch(ctx, chunk, ictx)
	if err != nil {
		e.logger.Warn("learned matcher failed",
			logging.String("chunk_id", chunk.ID), logging.Err(err))
	}
	if res != nil {
		return res
	}

	if e.cfg.EnablePatternRules {
		res, err = e.pattern.TryMatch(ctx, chunk, ictx)
		if err != nil {
			e.logger.Warn("pattern matcher failed",
				logging.String("chunk_id", chunk.ID), logging.Err(err))
		}
		if res != nil && res.Confidence >= e.cfg.MinConfidenceThreshold {
			return res
		}
	}

	res, _ = e.duplicate.TryMatch(ctx, chunk, ictx)
	if res != nil {
		return res
	}

	var signals []*Signal
	if s := e.heuristic.Classify(chunk); s != nil {
		signals = append(signals, s)
	}
	if s := e.heuristic.HintSignal(chunk); s != nil {
		signals = append(signals, s)
	}
	return FuseSignals(signals, e.calibration.Load().(notetypes.CalibrationMode), e.cfg.MinConfidenceThreshold)
}

// Labels returns the set of labels the engine can emit, in display order.
// Interface layers use it to validate review submissions.
func Labels() []notetypes.Label {
	return []notetypes.Label{notetypes.LabelKeep, notetypes.LabelCondense, notetypes.LabelRemove}
}
