package inference

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/pkg/types/common"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func confirmedRule(text string, label notetypes.Label, scope notetypes.RuleScope) *annotation.Annotation {
	return &annotation.Annotation{
		ID:        "a1",
		ChunkID:   "src-chunk",
		RawText:   text,
		Label:     label,
		Scope:     scope,
		Confirmed: true,
	}
}

func TestLearnedExactNormalizedMatch(t *testing.T) {
	rule := confirmedRule("Electronically signed by Dr. Smith.", notetypes.LabelRemove, notetypes.ScopeGlobal)
	rule.RemoveReason = notetypes.ReasonBoilerplate
	m := NewLearnedMatcher([]*annotation.Annotation{rule}, nil, DefaultConfig(), logging.NewNopLogger())

	res, err := m.TryMatch(context.Background(),
		chunkOf(notetypes.ChunkParagraph, "electronically signed   by dr smith"), nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, notetypes.SourceLearnedExact, res.Source)
	assert.Equal(t, notetypes.LabelRemove, res.Label)
	assert.Equal(t, notetypes.ReasonBoilerplate, res.RemoveReason)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)
	assert.Contains(t, res.Signals, "tier:exact")
}

func TestLearnedLexicalSimilarMatch(t *testing.T) {
	rule := confirmedRule("patient ambulating hallway without assistance today",
		notetypes.LabelKeep, notetypes.ScopeNoteType)
	m := NewLearnedMatcher([]*annotation.Annotation{rule}, nil, DefaultConfig(), logging.NewNopLogger())

	ictx := &annotation.InferenceContext{NoteType: "progress_note"}
	res, err := m.TryMatch(context.Background(),
		chunkOf(notetypes.ChunkParagraph, "Patient ambulating hallway without assistance."), ictx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, notetypes.SourceLearnedSimilar, res.Source)
	// Jaccard 5/6; confidence is the raw similarity.
	assert.InDelta(t, 5.0/6.0, res.Confidence, 1e-9)
	assert.Contains(t, res.Signals, "tier:lexical")
	assert.Contains(t, res.Signals, "scope:note_type")
}

func TestLearnedScopeWeightRejection(t *testing.T) {
	// Jaccard 4/6 passes the lexical threshold but weighted by the global
	// scope weight it stays below the 0.70 acceptance threshold.
	rule := confirmedRule("patient ambulating hallway without assistance",
		notetypes.LabelKeep, notetypes.ScopeGlobal)
	m := NewLearnedMatcher([]*annotation.Annotation{rule}, nil, DefaultConfig(), logging.NewNopLogger())

	res, err := m.TryMatch(context.Background(),
		chunkOf(notetypes.ChunkParagraph, "patient ambulating hallway without difficulty"), nil)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestLearnedSemanticTier(t *testing.T) {
	rule := confirmedRule("beta", notetypes.LabelCondense, notetypes.ScopeNoteType)
	rule.CondenseStrategy = notetypes.StrategyOneLineSummary
	provider := &fakeEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0.8, 0.6, 0},
	}}
	m := NewLearnedMatcher([]*annotation.Annotation{rule}, provider, DefaultConfig(), logging.NewNopLogger())

	ictx := &annotation.InferenceContext{NoteType: "progress_note"}
	res, err := m.TryMatch(context.Background(), chunkOf(notetypes.ChunkParagraph, "alpha"), ictx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, notetypes.SourceLearnedSimilar, res.Source)
	assert.Equal(t, notetypes.StrategyOneLineSummary, res.CondenseStrategy)
	// Cosine of (1,0,0) and (0.8,0.6,0) is 0.8.
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.Contains(t, res.Signals, "tier:semantic")
}

func TestLearnedSemanticBelowThresholdNoLexicalRetry(t *testing.T) {
	rule := confirmedRule("beta", notetypes.LabelKeep, notetypes.ScopeGlobal)
	provider := &fakeEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0.7, 0.714142, 0}, // cosine ~0.70, under the 0.75 threshold
	}}
	m := NewLearnedMatcher([]*annotation.Annotation{rule}, provider, DefaultConfig(), logging.NewNopLogger())

	res, err := m.TryMatch(context.Background(), chunkOf(notetypes.ChunkParagraph, "alpha"), nil)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1, provider.calls)
}

func TestLearnedProviderErrorFallsBackToLexical(t *testing.T) {
	rule := confirmedRule("patient ambulating hallway without assistance today",
		notetypes.LabelKeep, notetypes.ScopeService)
	provider := &fakeEmbedder{err: errors.New("embedding service down")}
	m := NewLearnedMatcher([]*annotation.Annotation{rule}, provider, DefaultConfig(), logging.NewNopLogger())

	ictx := &annotation.InferenceContext{Service: "cardiology"}
	res, err := m.TryMatch(context.Background(),
		chunkOf(notetypes.ChunkParagraph, "Patient ambulating hallway without assistance."), ictx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Contains(t, res.Signals, "tier:lexical")
	// Jaccard 5/6 weighted by the in-context service weight 0.90 passes.
	assert.InDelta(t, 5.0/6.0, res.Confidence, 1e-9)
}

func TestLearnedEmptyInputs(t *testing.T) {
	m := NewLearnedMatcher(nil, nil, DefaultConfig(), logging.NewNopLogger())
	res, err := m.TryMatch(context.Background(), chunkOf(notetypes.ChunkParagraph, "anything"), nil)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 0, m.RuleCount())

	m = NewLearnedMatcher([]*annotation.Annotation{
		confirmedRule("some confirmed text", notetypes.LabelKeep, notetypes.ScopeGlobal),
	}, nil, DefaultConfig(), logging.NewNopLogger())
	res, err = m.TryMatch(context.Background(), chunkOf(notetypes.ChunkParagraph, "   !!! "), nil)
	require.NoError(t, err)
	assert.Nil(t, res)
}

type fakeSearcher struct {
	hits  []VectorHit
	err   error
	calls int
}

func (f *fakeSearcher) SearchSimilar(_ context.Context, _ []float32, _ int) ([]VectorHit, error) {
	f.calls++
	return f.hits, f.err
}

func indexRules(n int) []*annotation.Annotation {
	rules := make([]*annotation.Annotation, n)
	for i := range rules {
		r := confirmedRule(fmt.Sprintf("confirmed rule body text variant %d", i),
			notetypes.LabelKeep, notetypes.ScopeGlobal)
		r.ID = common.ID(fmt.Sprintf("rule-%d", i))
		rules[i] = r
	}
	return rules
}

func TestLearnedIndexBackedSemanticTier(t *testing.T) {
	rules := indexRules(defaultIndexThreshold)
	rules[7].Label = notetypes.LabelRemove
	rules[7].RemoveReason = notetypes.ReasonBoilerplate

	chunkText := "Thank you for allowing us to participate in this patient's care."
	provider := &fakeEmbedder{vectors: map[string][]float32{chunkText: {1, 0, 0}}}
	searcher := &fakeSearcher{hits: []VectorHit{
		{ID: "rule-7", Score: 0.9},
		{ID: "rule-3", Score: 0.78},
		{ID: "not-in-snapshot", Score: 0.99},
	}}

	m := NewLearnedMatcher(rules, provider, DefaultConfig(), logging.NewNopLogger()).
		WithSearcher(searcher, 10)

	res, err := m.TryMatch(context.Background(), chunkOf(notetypes.ChunkParagraph, chunkText), nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, searcher.calls)
	assert.Equal(t, 1, provider.calls, "index path embeds only the chunk")
	assert.Equal(t, notetypes.LabelRemove, res.Label)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Contains(t, res.Signals, "tier:semantic")
}

func TestLearnedIndexFailureFallsBackToBatchEmbedding(t *testing.T) {
	rules := indexRules(defaultIndexThreshold)
	chunkText := "ambulating without assistance in the hallway"
	vectors := map[string][]float32{chunkText: {1, 0, 0}}
	for _, r := range rules {
		vectors[r.RawText] = []float32{0, 1, 0}
	}
	vectors[rules[5].RawText] = []float32{0.9, 0.4358899, 0}

	provider := &fakeEmbedder{vectors: vectors}
	searcher := &fakeSearcher{err: errors.New("milvus unavailable")}

	m := NewLearnedMatcher(rules, provider, DefaultConfig(), logging.NewNopLogger()).
		WithSearcher(searcher, 10)

	res, err := m.TryMatch(context.Background(), chunkOf(notetypes.ChunkParagraph, chunkText), nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 2, provider.calls, "chunk embed for index then full batch")
	assert.InDelta(t, 0.9, res.Confidence, 1e-6)
}

func TestLearnedSmallSnapshotSkipsIndex(t *testing.T) {
	rule := confirmedRule("small snapshot rule", notetypes.LabelKeep, notetypes.ScopeGlobal)
	provider := &fakeEmbedder{vectors: map[string][]float32{}}
	searcher := &fakeSearcher{}

	m := NewLearnedMatcher([]*annotation.Annotation{rule}, provider, DefaultConfig(), logging.NewNopLogger()).
		WithSearcher(searcher, 10)

	_, err := m.TryMatch(context.Background(), chunkOf(notetypes.ChunkParagraph, "unrelated text entirely"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, searcher.calls)
}
