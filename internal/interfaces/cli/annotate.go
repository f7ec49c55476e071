package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	app "github.com/nasher721/note-clarity-sub000/internal/application/annotation"
	domain "github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/inference"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/embedding"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/messaging/kafka"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

// AnnotateFile is the JSON input format for offline annotation runs: one
// document's chunks plus optional inline rules.
type AnnotateFile struct {
	DocumentID        string          `json:"document_id"`
	NoteType          string          `json:"note_type,omitempty"`
	Service           string          `json:"service,omitempty"`
	DuplicateChunkIDs []string        `json:"duplicate_chunk_ids,omitempty"`
	Chunks            []*domain.Chunk `json:"chunks"`

	// LearnedAnnotations are confirmed annotations acting as learned rules
	// for this run only.
	LearnedAnnotations []*domain.Annotation `json:"learned_annotations,omitempty"`

	// PatternRules are authored rules applied for this run only.
	PatternRules []*domain.PatternRule `json:"pattern_rules,omitempty"`
}

// memoryRuleSource serves inline rules from an AnnotateFile. Writes are
// accepted and discarded; offline runs never persist.
type memoryRuleSource struct {
	annotations []*domain.Annotation
	rules       []*domain.PatternRule
}

func (m *memoryRuleSource) Save(context.Context, *domain.Annotation) error        { return nil }
func (m *memoryRuleSource) SaveBatch(context.Context, []*domain.Annotation) error { return nil }

func (m *memoryRuleSource) GetByChunkID(_ context.Context, chunkID string) (*domain.Annotation, error) {
	return nil, errors.Newf(errors.ErrCodeAnnotationNotFound, "no annotation for chunk %s", chunkID)
}

func (m *memoryRuleSource) ListConfirmed(_ context.Context, noteType, service string) ([]*domain.Annotation, error) {
	var out []*domain.Annotation
	for _, a := range m.annotations {
		if !a.Confirmed {
			continue
		}
		switch a.Scope {
		case notetypes.ScopeNoteType:
			if noteType == "" {
				continue
			}
		case notetypes.ScopeService:
			if service == "" {
				continue
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryRuleSource) ListActive(context.Context) ([]*domain.PatternRule, error) {
	var out []*domain.PatternRule
	for _, r := range m.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRuleSource) ListActiveByChunkType(ctx context.Context, ct notetypes.ChunkType) ([]*domain.PatternRule, error) {
	all, _ := m.ListActive(ctx)
	var out []*domain.PatternRule
	for _, r := range all {
		if r.AppliesTo(ct) {
			out = append(out, r)
		}
	}
	return out, nil
}

// annotateSummary is the text-mode output of one offline run.
type annotateSummary struct {
	result *app.AnnotateResult
}

func (s annotateSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "document %s: %d annotated, %d unannotated (%.0f ms)\n",
		s.result.DocumentID,
		len(s.result.Annotations),
		s.result.Counts.Unannotated,
		float64(s.result.ElapsedMs))
	fmt.Fprintf(&b, "  keep=%d condense=%d remove=%d fields=%d",
		s.result.Counts.Keep,
		s.result.Counts.Condense,
		s.result.Counts.Remove,
		len(s.result.ExtractedFields))
	for _, a := range s.result.Annotations {
		expl := s.result.Explanations[a.ChunkID]
		if expl == nil {
			continue
		}
		fmt.Fprintf(&b, "\n  %s  %-8s  %.2f  %s", a.ChunkID, a.Label, expl.Confidence, expl.Source)
	}
	return b.String()
}

// NewAnnotateCmd creates the annotate command: one offline inference pass
// over a JSON chunk file.
func NewAnnotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate <file>",
		Short: "Run the inference pipeline over a JSON chunk file",
		Long: "Reads a document (chunks, context, optional inline rules) from a JSON\n" +
			"file, runs the full inference pipeline, and prints the resulting\n" +
			"annotations, explanations, and extracted fields. Nothing is persisted.",
		Args: cobra.ExactArgs(1),
		RunE: runAnnotate,
	}
	return cmd
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	input, err := readAnnotateFile(args[0])
	if err != nil {
		return err
	}

	source := &memoryRuleSource{
		annotations: input.LearnedAnnotations,
		rules:       input.PatternRules,
	}

	cfg := cliCtx.Config
	engineCfg := inference.ConfigFromSettings(cfg.Inference, cfg.Embedding.Timeout)

	var provider inference.EmbeddingProvider
	if cfg.Inference.EnableSemanticSearch && cfg.Embedding.Provider == "openai" {
		provider = embedding.NewVectorCache(
			embedding.NewOpenAIProvider(cfg.Embedding, cliCtx.Logger),
			nil,
			cfg.Embedding.CacheSize,
			cliCtx.Logger,
		)
	}

	engine := inference.NewEngine(source, source, provider, engineCfg, cliCtx.Logger)
	svc := app.NewService(engine, source, nil, kafka.NopPublisher{}, cliCtx.Logger)

	ictx := &domain.InferenceContext{
		NoteType: input.NoteType,
		Service:  input.Service,
	}
	if len(input.DuplicateChunkIDs) > 0 {
		ictx.DuplicateChunkIDs = make(map[string]struct{}, len(input.DuplicateChunkIDs))
		for _, id := range input.DuplicateChunkIDs {
			ictx.DuplicateChunkIDs[id] = struct{}{}
		}
	}

	result, err := svc.AnnotateDocument(cmd.Context(), &app.AnnotateInput{
		DocumentID: input.DocumentID,
		Chunks:     input.Chunks,
		Context:    ictx,
	})
	if err != nil {
		return err
	}

	if strings.EqualFold(cliCtx.OutputFormat, "json") {
		return PrintResult(cmd, result)
	}
	return PrintResult(cmd, annotateSummary{result: result})
}

func readAnnotateFile(path string) (*AnnotateFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeBadRequest, "cannot read input file %s", path)
	}

	var input AnnotateFile
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeSerialization, "cannot parse input file %s", path)
	}
	if input.DocumentID == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "input file is missing document_id")
	}
	return &input, nil
}
