// Package annotation provides the application-level service tying the
// inference engine to persistence, events, and metrics.  Handlers and CLI
// commands talk to this service, never to the engine directly.
package annotation

import (
	"context"
	"strings"
	"time"

	domain "github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/inference"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/prometheus"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/search/milvus"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
	"github.com/nasher721/note-clarity-sub000/pkg/types/common"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

// Service defines the application operations over the inference engine.
type Service interface {
	// AnnotateDocument runs one inference pass over a document's chunks.
	AnnotateDocument(ctx context.Context, input *AnnotateInput) (*AnnotateResult, error)

	// ConfirmAnnotation promotes an annotation to a learned rule at the
	// given scope.
	ConfirmAnnotation(ctx context.Context, input *ConfirmInput) error

	// SyncRuleIndex pushes the confirmed-rule corpus into the vector
	// index.  A no-op when no index is configured.
	SyncRuleIndex(ctx context.Context) (int, error)
}

// Engine is the subset of the inference engine the service depends on.
type Engine interface {
	Infer(ctx context.Context, chunks []*domain.Chunk, ictx *domain.InferenceContext) (*domain.InferenceResult, error)
}

// Confirmer promotes annotations to learned rules.  Implemented by the
// postgres annotation repository.
type Confirmer interface {
	Confirm(ctx context.Context, id common.ID, scope notetypes.RuleScope, noteType, service string, userID common.UserID) error
}

// RuleIndexer is the vector-index surface used by SyncRuleIndex.
type RuleIndexer interface {
	EnsureCollection(ctx context.Context) error
	UpsertRules(ctx context.Context, rules []milvus.RuleVector) error
}

// AnnotateInput is one document to annotate.
type AnnotateInput struct {
	DocumentID string
	Chunks     []*domain.Chunk
	Context    *domain.InferenceContext

	// Persist stores the produced annotations.  Off by default: the
	// engine's own output is suggestion-grade until a reviewer confirms
	// it, and most callers only want the response payload.
	Persist bool
}

// LabelCounts summarizes one pass's outcomes.
type LabelCounts struct {
	Keep        int `json:"keep"`
	Condense    int `json:"condense"`
	Remove      int `json:"remove"`
	Unannotated int `json:"unannotated"`
}

// AnnotateResult is the response payload for one document.
type AnnotateResult struct {
	DocumentID      string                              `json:"document_id"`
	Annotations     []*domain.Annotation                `json:"annotations"`
	Explanations    map[string]*domain.ModelExplanation `json:"explanations"`
	ExtractedFields []*domain.ExtractedField            `json:"extracted_fields"`
	Counts          LabelCounts                         `json:"counts"`
	ElapsedMs       int64                               `json:"elapsed_ms"`
}

// ConfirmInput promotes one annotation.
type ConfirmInput struct {
	AnnotationID string
	Scope        notetypes.RuleScope
	NoteType     string
	Service      string
	UserID       string
}

type serviceImpl struct {
	engine    Engine
	repo      domain.Repository
	confirmer Confirmer
	publisher domain.EventPublisher
	index     RuleIndexer
	provider  inference.EmbeddingProvider
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
}

// Option customizes the service.
type Option func(*serviceImpl)

// WithRuleIndex enables SyncRuleIndex.
func WithRuleIndex(index RuleIndexer, provider inference.EmbeddingProvider) Option {
	return func(s *serviceImpl) {
		s.index = index
		s.provider = provider
	}
}

// WithMetrics enables metric recording.
func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(s *serviceImpl) {
		s.metrics = m
	}
}

// NewService wires the application service.  publisher may be nil; events
// are then skipped, as are any features no option enables.
func NewService(
	engine Engine,
	repo domain.Repository,
	confirmer Confirmer,
	publisher domain.EventPublisher,
	logger logging.Logger,
	opts ...Option,
) Service {
	s := &serviceImpl{
		engine:    engine,
		repo:      repo,
		confirmer: confirmer,
		publisher: publisher,
		logger:    logger.Named("annotation-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceImpl) AnnotateDocument(ctx context.Context, input *AnnotateInput) (*AnnotateResult, error) {
	if input == nil || len(input.Chunks) == 0 {
		return nil, errors.New(errors.ErrCodeDocumentEmpty, "document contains no chunks")
	}

	noteType := ""
	if input.Context != nil {
		noteType = input.Context.NoteType
	}

	start := time.Now()
	result, err := s.engine.Infer(ctx, input.Chunks, input.Context)
	elapsed := time.Since(start)
	prometheus.RecordInference(s.metrics, noteType, elapsed, err)
	if err != nil {
		s.logger.Error("inference pass failed",
			logging.String("document_id", input.DocumentID),
			logging.Err(err))
		return nil, err
	}

	for _, c := range input.Chunks {
		prometheus.RecordChunkProcessed(s.metrics, string(c.Type))
	}
	for _, f := range result.ExtractedFields {
		prometheus.RecordFieldExtracted(s.metrics, string(f.Category))
	}

	counts := LabelCounts{Unannotated: len(input.Chunks) - len(result.Annotations)}
	for _, a := range result.Annotations {
		switch a.Label {
		case notetypes.LabelKeep:
			counts.Keep++
		case notetypes.LabelCondense:
			counts.Condense++
		case notetypes.LabelRemove:
			counts.Remove++
		}
		if expl := result.Explanations[a.ChunkID]; expl != nil {
			prometheus.RecordAnnotation(s.metrics, string(a.Label), string(expl.Source))
			if expl.Source == notetypes.SourceCriticalSafety {
				prometheus.RecordSafetyOverride(s.metrics, overriddenSource(expl.Signals))
			}
		}
	}

	if input.Persist && len(result.Annotations) > 0 {
		if err := s.repo.SaveBatch(ctx, result.Annotations); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to persist annotations")
		}
	}

	s.publishCreated(ctx, input, result)

	s.logger.Info("document annotated",
		logging.String("document_id", input.DocumentID),
		logging.Int("chunks", len(input.Chunks)),
		logging.Int("annotated", len(result.Annotations)),
		logging.Duration("elapsed", elapsed))

	return &AnnotateResult{
		DocumentID:      input.DocumentID,
		Annotations:     result.Annotations,
		Explanations:    result.Explanations,
		ExtractedFields: result.ExtractedFields,
		Counts:          counts,
		ElapsedMs:       elapsed.Milliseconds(),
	}, nil
}

// overriddenSource pulls the overridden decision source out of a safety
// explanation's signal list.
func overriddenSource(signals []string) string {
	for _, sig := range signals {
		if rest, ok := strings.CutPrefix(sig, "overridden:"); ok {
			return rest
		}
	}
	return "unknown"
}

// publishCreated is fire-and-forget; the producer logs its own failures.
func (s *serviceImpl) publishCreated(ctx context.Context, input *AnnotateInput, result *domain.InferenceResult) {
	if s.publisher == nil || len(result.Annotations) == 0 {
		return
	}
	event := domain.NewAnnotationsCreatedEvent(input.DocumentID, input.Context, result.Annotations)
	if err := s.publisher.PublishAnnotationsCreated(ctx, event); err != nil {
		s.logger.Warn("event publish rejected",
			logging.String("document_id", input.DocumentID),
			logging.Err(err))
	}
}

func (s *serviceImpl) ConfirmAnnotation(ctx context.Context, input *ConfirmInput) error {
	if input == nil || input.AnnotationID == "" {
		return errors.New(errors.ErrCodeValidation, "annotation id required")
	}
	if !input.Scope.IsValid() {
		return errors.Newf(errors.ErrCodeValidation, "unknown rule scope %q", input.Scope)
	}
	if input.Scope == notetypes.ScopeNoteType && input.NoteType == "" {
		return errors.New(errors.ErrCodeValidation, "note_type scope requires a note type")
	}
	if input.Scope == notetypes.ScopeService && input.Service == "" {
		return errors.New(errors.ErrCodeValidation, "service scope requires a service")
	}

	// File-backed deployments (the CLI) have no confirmation store.
	if s.confirmer == nil {
		return errors.New(errors.ErrCodeFeatureDisabled, "annotation confirmation requires a database-backed deployment")
	}

	userID := common.UserID(input.UserID)
	if userID == "" {
		userID = common.SystemUser
	}
	if err := s.confirmer.Confirm(ctx, common.ID(input.AnnotationID), input.Scope,
		input.NoteType, input.Service, userID); err != nil {
		return err
	}

	s.logger.Info("annotation confirmed",
		logging.String("annotation_id", input.AnnotationID),
		logging.String("scope", string(input.Scope)))
	return nil
}

// syncBatchSize bounds one embedding call during index sync.
const syncBatchSize = 64

func (s *serviceImpl) SyncRuleIndex(ctx context.Context) (int, error) {
	if s.index == nil || s.provider == nil {
		return 0, nil
	}

	confirmed, err := s.repo.ListConfirmed(ctx, "", "")
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list confirmed rules")
	}
	if err := s.index.EnsureCollection(ctx); err != nil {
		return 0, err
	}

	perScope := make(map[string]int)
	for _, a := range confirmed {
		perScope[string(a.Scope)]++
	}
	for scope, n := range perScope {
		prometheus.SetLearnedRuleCount(s.metrics, scope, n)
	}

	synced := 0
	for start := 0; start < len(confirmed); start += syncBatchSize {
		end := start + syncBatchSize
		if end > len(confirmed) {
			end = len(confirmed)
		}
		batch := confirmed[start:end]

		texts := make([]string, len(batch))
		for i, a := range batch {
			texts[i] = a.RawText
		}
		vectors, err := s.provider.Embed(ctx, texts)
		if err != nil {
			return synced, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "failed to embed rule batch")
		}
		if len(vectors) != len(batch) {
			return synced, errors.New(errors.ErrCodeEmbeddingFailed, "embedding count mismatch during sync")
		}

		rules := make([]milvus.RuleVector, len(batch))
		for i, a := range batch {
			rules[i] = milvus.RuleVector{
				ID:     string(a.ID),
				Scope:  string(a.Scope),
				Vector: vectors[i],
			}
		}
		if err := s.index.UpsertRules(ctx, rules); err != nil {
			return synced, err
		}
		synced += len(rules)
	}

	s.logger.Info("rule index synced", logging.Int("rules", synced))
	return synced, nil
}
