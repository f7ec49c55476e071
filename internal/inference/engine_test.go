package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

type stubAnnotationRepo struct {
	confirmed []*annotation.Annotation
	err       error
}

func (s *stubAnnotationRepo) Save(context.Context, *annotation.Annotation) error        { return nil }
func (s *stubAnnotationRepo) SaveBatch(context.Context, []*annotation.Annotation) error { return nil }

func (s *stubAnnotationRepo) GetByChunkID(context.Context, string) (*annotation.Annotation, error) {
	return nil, errors.NotFound("annotation")
}

func (s *stubAnnotationRepo) ListConfirmed(context.Context, string, string) ([]*annotation.Annotation, error) {
	return s.confirmed, s.err
}

func newTestEngine(t *testing.T, repo *stubAnnotationRepo, rules *stubRuleRepo) *Engine {
	t.Helper()
	if repo == nil {
		repo = &stubAnnotationRepo{}
	}
	if rules == nil {
		rules = &stubRuleRepo{}
	}
	return NewEngine(repo, rules, nil, DefaultConfig(), logging.NewNopLogger())
}

func namedChunk(id string, ct notetypes.ChunkType, text string) *annotation.Chunk {
	return &annotation.Chunk{ID: id, Type: ct, Text: text}
}

func TestEngineAttestationScenario(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	chunks := []*annotation.Chunk{
		namedChunk("c1", notetypes.ChunkAttestation,
			"I personally examined the patient and agree with the above."),
	}
	res, err := e.Infer(context.Background(), chunks, nil)
	require.NoError(t, err)
	require.Len(t, res.Annotations, 1)

	ann := res.Annotations[0]
	assert.Equal(t, notetypes.LabelRemove, ann.Label)
	assert.Equal(t, notetypes.ReasonBillingAttestation, ann.RemoveReason)
	assert.Equal(t, "c1", ann.ChunkID)
	assert.True(t, ann.IsSystem())
	assert.Equal(t, notetypes.ScopeThisDocument, ann.Scope)

	expl := res.Explanations["c1"]
	require.NotNil(t, expl)
	assert.Equal(t, notetypes.SourceHeuristicRules, expl.Source)
	assert.GreaterOrEqual(t, expl.Confidence, 0.82)
	assert.LessOrEqual(t, expl.Confidence, 0.85)
}

func TestEngineHintedRemoveKeepsReason(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	label := notetypes.LabelRemove
	conf := 0.92
	chunk := namedChunk("c5", notetypes.ChunkParagraph, "Electronically signed by Dr. Smith.")
	chunk.SuggestedLabel = &label
	chunk.SuggestedConfidence = &conf

	res, err := e.Infer(context.Background(), []*annotation.Chunk{chunk}, nil)
	require.NoError(t, err)
	require.Len(t, res.Annotations, 1)

	ann := res.Annotations[0]
	assert.Equal(t, notetypes.LabelRemove, ann.Label)
	// The hint signal carries no remove reason; the heuristic member's
	// reason must survive fusion even though the hint scores higher.
	assert.Equal(t, notetypes.ReasonBoilerplate, ann.RemoveReason)

	expl := res.Explanations["c5"]
	require.NotNil(t, expl)
	assert.Equal(t, notetypes.SourceCombinedSignals, expl.Source)
}

func TestEngineSetCalibrationAppliesOnNextPass(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	chunks := []*annotation.Chunk{
		namedChunk("c1", notetypes.ChunkAttestation,
			"I personally examined the patient and agree with the above."),
	}
	res, err := e.Infer(context.Background(), chunks, nil)
	require.NoError(t, err)
	base := res.Explanations["c1"].Confidence

	e.SetCalibration(notetypes.CalibrationAggressive)
	res, err = e.Infer(context.Background(), chunks, nil)
	require.NoError(t, err)
	assert.InDelta(t, base*1.1, res.Explanations["c1"].Confidence, 1e-9)

	// Unknown modes are ignored; the previous policy stays in effect.
	e.SetCalibration(notetypes.CalibrationMode("bogus"))
	res, err = e.Infer(context.Background(), chunks, nil)
	require.NoError(t, err)
	assert.InDelta(t, base*1.1, res.Explanations["c1"].Confidence, 1e-9)
}

func TestEngineDuplicateScenario(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	text := "No known drug allergies."
	chunks := []*annotation.Chunk{
		namedChunk("c2", notetypes.ChunkParagraph, text),
		namedChunk("c9", notetypes.ChunkParagraph, text),
	}
	ictx := &annotation.InferenceContext{
		DuplicateChunkIDs: map[string]struct{}{"c9": {}},
	}
	res, err := e.Infer(context.Background(), chunks, ictx)
	require.NoError(t, err)

	_, firstAnnotated := res.Explanations["c2"]
	assert.False(t, firstAnnotated)

	expl := res.Explanations["c9"]
	require.NotNil(t, expl)
	assert.Equal(t, notetypes.SourceDuplicateDetector, expl.Source)
	assert.GreaterOrEqual(t, expl.Confidence, 0.74)
	assert.LessOrEqual(t, expl.Confidence, 0.78)

	require.Len(t, res.Annotations, 1)
	assert.Equal(t, notetypes.ReasonDuplicateData, res.Annotations[0].RemoveReason)

	// Both chunks produced the NKDA field; the duplicate collapses.
	allergies := fieldsByCategory(res.ExtractedFields, notetypes.FieldAllergy)
	assert.Len(t, allergies, 1)
}

func TestEnginePatternRuleScenario(t *testing.T) {
	rules := &stubRuleRepo{rules: []*annotation.PatternRule{
		{
			ID:                 "pr1",
			PatternType:        notetypes.PatternKeyword,
			PatternValue:       "stable vitals",
			Label:              notetypes.LabelCondense,
			CondenseStrategy:   notetypes.StrategyAbnormalOnly,
			Scope:              notetypes.ScopeGlobal,
			EffectivenessScore: 0.8,
			Active:             true,
		},
	}}
	e := newTestEngine(t, nil, rules)

	chunks := []*annotation.Chunk{
		namedChunk("c1", notetypes.ChunkLabValues, "Stable vitals overnight, labs pending."),
	}
	res, err := e.Infer(context.Background(), chunks, nil)
	require.NoError(t, err)

	expl := res.Explanations["c1"]
	require.NotNil(t, expl)
	assert.Equal(t, notetypes.SourcePatternRule, expl.Source)
	assert.InDelta(t, 0.90, expl.Confidence, 1e-9)
	require.Len(t, res.Annotations, 1)
	assert.Equal(t, notetypes.LabelCondense, res.Annotations[0].Label)
	assert.Equal(t, notetypes.StrategyAbnormalOnly, res.Annotations[0].CondenseStrategy)
}

func TestEngineLearnedExactScenario(t *testing.T) {
	repo := &stubAnnotationRepo{confirmed: []*annotation.Annotation{
		{
			ID:        "la1",
			ChunkID:   "old",
			RawText:   "Vital signs stable throughout admission,",
			Label:     notetypes.LabelKeep,
			Scope:     notetypes.ScopeGlobal,
			Confirmed: true,
		},
	}}
	e := newTestEngine(t, repo, nil)

	chunks := []*annotation.Chunk{
		namedChunk("c1", notetypes.ChunkParagraph, "vital signs STABLE throughout admission"),
	}
	res, err := e.Infer(context.Background(), chunks, nil)
	require.NoError(t, err)

	expl := res.Explanations["c1"]
	require.NotNil(t, expl)
	assert.Equal(t, notetypes.SourceLearnedExact, expl.Source)
	assert.InDelta(t, 0.95, expl.Confidence, 1e-9)
	require.Len(t, res.Annotations, 1)
	assert.Equal(t, notetypes.LabelKeep, res.Annotations[0].Label)
}

func TestEngineCriticalSafetyOverride(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	chunk := namedChunk("c1", notetypes.ChunkParagraph, "Allergic to penicillin, anaphylaxis.")
	chunk.IsCritical = true
	chunk.CriticalType = "allergy"

	// The duplicate detector would remove this chunk; the guard must win.
	ictx := &annotation.InferenceContext{
		DuplicateChunkIDs: map[string]struct{}{"c1": {}},
	}
	res, err := e.Infer(context.Background(), []*annotation.Chunk{chunk}, ictx)
	require.NoError(t, err)

	require.Len(t, res.Annotations, 1)
	ann := res.Annotations[0]
	assert.Equal(t, notetypes.LabelKeep, ann.Label)
	assert.Empty(t, ann.RemoveReason)

	expl := res.Explanations["c1"]
	require.NotNil(t, expl)
	assert.Equal(t, notetypes.SourceCriticalSafety, expl.Source)
	// Duplicate confidence 0.76 reduced by the override penalty.
	assert.InDelta(t, 0.61, expl.Confidence, 1e-9)
	assert.Contains(t, expl.Signals, "overridden:duplicate_detector")
}

func TestEngineUnmatchedChunkStaysUnannotated(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	chunks := []*annotation.Chunk{
		namedChunk("c1", notetypes.ChunkParagraph, "Disposition: discharge home"),
	}
	res, err := e.Infer(context.Background(), chunks, nil)
	require.NoError(t, err)

	assert.Empty(t, res.Annotations)
	assert.Empty(t, res.Explanations)
	// Extraction still ran.
	require.Len(t, res.ExtractedFields, 1)
	assert.Equal(t, notetypes.FieldKeyValue, res.ExtractedFields[0].Category)
}

func TestEngineHintAndRuleCombine(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	label := notetypes.LabelRemove
	conf := 0.70
	chunk := namedChunk("c1", notetypes.ChunkParagraph, "Electronically signed by Dr. Smith.")
	chunk.SuggestedLabel = &label
	chunk.SuggestedConfidence = &conf

	res, err := e.Infer(context.Background(), []*annotation.Chunk{chunk}, nil)
	require.NoError(t, err)

	expl := res.Explanations["c1"]
	require.NotNil(t, expl)
	assert.Equal(t, notetypes.SourceCombinedSignals, expl.Source)
	// Boilerplate 0.80 and hint 0.75 average to 0.775 plus the agreement boost.
	assert.InDelta(t, 0.825, expl.Confidence, 1e-9)
	require.Len(t, res.Annotations, 1)
	assert.Equal(t, notetypes.ReasonBoilerplate, res.Annotations[0].RemoveReason)
}

func TestEngineHintOnlyFallback(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	label := notetypes.LabelKeep
	conf := 0.80
	chunk := namedChunk("c1", notetypes.ChunkParagraph, "Discussed goals of care with family.")
	chunk.SuggestedLabel = &label
	chunk.SuggestedConfidence = &conf

	res, err := e.Infer(context.Background(), []*annotation.Chunk{chunk}, nil)
	require.NoError(t, err)

	expl := res.Explanations["c1"]
	require.NotNil(t, expl)
	assert.Equal(t, notetypes.SourceHeuristicRules, expl.Source)
	assert.InDelta(t, 0.85, expl.Confidence, 1e-9)
}

func TestEngineRepositoryFailureDisablesLearnedTierOnly(t *testing.T) {
	repo := &stubAnnotationRepo{err: errors.Internal("database unavailable")}
	e := newTestEngine(t, repo, nil)

	chunks := []*annotation.Chunk{
		namedChunk("c1", notetypes.ChunkSectionHeader, "ASSESSMENT AND PLAN"),
	}
	res, err := e.Infer(context.Background(), chunks, nil)
	require.NoError(t, err)
	require.Len(t, res.Annotations, 1)
	assert.Equal(t, notetypes.LabelKeep, res.Annotations[0].Label)
}

func TestEnginePreservesDocumentOrder(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	var chunks []*annotation.Chunk
	ids := []string{"c1", "c2", "c3", "c4", "c5", "c6"}
	for _, id := range ids {
		chunks = append(chunks, namedChunk(id, notetypes.ChunkSectionHeader, "SECTION "+id))
	}
	res, err := e.Infer(context.Background(), chunks, nil)
	require.NoError(t, err)
	require.Len(t, res.Annotations, len(ids))
	for i, ann := range res.Annotations {
		assert.Equal(t, ids[i], ann.ChunkID)
	}
}

func TestEngineEmptyInput(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	res, err := e.Infer(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Annotations)
	assert.Empty(t, res.ExtractedFields)
}
