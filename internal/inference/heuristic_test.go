package inference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

func chunkOf(t notetypes.ChunkType, text string) *annotation.Chunk {
	return &annotation.Chunk{ID: "c1", Type: t, Text: text}
}

func TestHeuristicCriticalAlwaysKeep(t *testing.T) {
	h := NewHeuristicClassifier()

	chunk := chunkOf(notetypes.ChunkParagraph, "I have personally examined the patient.")
	chunk.IsCritical = true
	chunk.CriticalType = "allergy"

	sig := h.Classify(chunk)
	require.NotNil(t, sig)
	assert.Equal(t, notetypes.LabelKeep, sig.Label)
	assert.InDelta(t, 0.95, sig.Confidence, 1e-9)
	assert.Contains(t, sig.Reason, "allergy")
	assert.Equal(t, notetypes.SourceHeuristicRules, sig.Source)
}

func TestHeuristicSectionHeader(t *testing.T) {
	h := NewHeuristicClassifier()

	sig := h.Classify(chunkOf(notetypes.ChunkSectionHeader, "ASSESSMENT AND PLAN"))
	require.NotNil(t, sig)
	assert.Equal(t, notetypes.LabelKeep, sig.Label)
	assert.InDelta(t, 0.90, sig.Confidence, 1e-9)
}

func TestHeuristicAttestationChunk(t *testing.T) {
	h := NewHeuristicClassifier()

	sig := h.Classify(chunkOf(notetypes.ChunkAttestation, "Attending attestation."))
	require.NotNil(t, sig)
	assert.Equal(t, notetypes.LabelRemove, sig.Label)
	assert.InDelta(t, 0.84, sig.Confidence, 1e-9)
	assert.Equal(t, notetypes.ReasonBillingAttestation, sig.RemoveReason)
}

func TestHeuristicRemoveRules(t *testing.T) {
	h := NewHeuristicClassifier()

	tests := []struct {
		name   string
		text   string
		reason notetypes.RemoveReason
		conf   float64
	}{
		{"boilerplate", "I have personally seen and examined the patient and agree with the above.", notetypes.ReasonBoilerplate, 0.80},
		{"normal ros", "Review of systems is otherwise negative.", notetypes.ReasonNormalROSExam, 0.78},
		{"administrative", "Please call the clinic to schedule a follow up appointment.", notetypes.ReasonAdministrative, 0.72},
		{"copied prior", "HPI carried forward from previous note.", notetypes.ReasonCopiedPriorNote, 0.76},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := h.Classify(chunkOf(notetypes.ChunkParagraph, tt.text))
			require.NotNil(t, sig)
			assert.Equal(t, notetypes.LabelRemove, sig.Label)
			assert.Equal(t, tt.reason, sig.RemoveReason)
			assert.InDelta(t, tt.conf, sig.Confidence, 1e-9)
		})
	}
}

func TestHeuristicUnchangedGatedByChunkType(t *testing.T) {
	h := NewHeuristicClassifier()

	img := h.Classify(chunkOf(notetypes.ChunkImagingReport, "CXR: no interval change."))
	require.NotNil(t, img)
	assert.Equal(t, notetypes.ReasonRepeatedImaging, img.RemoveReason)
	assert.InDelta(t, 0.74, img.Confidence, 1e-9)

	labs := h.Classify(chunkOf(notetypes.ChunkLabValues, "CBC unchanged from yesterday."))
	require.NotNil(t, labs)
	assert.Equal(t, notetypes.ReasonRepeatedLabs, labs.RemoveReason)
	assert.InDelta(t, 0.72, labs.Confidence, 1e-9)

	// The same phrasing in a narrative paragraph is not a removal signal.
	para := h.Classify(chunkOf(notetypes.ChunkParagraph, "Creatinine unchanged from baseline."))
	assert.Nil(t, para)
}

func TestHeuristicCondenseThresholds(t *testing.T) {
	h := NewHeuristicClassifier()

	longLabs := chunkOf(notetypes.ChunkLabValues, strings.Repeat("Na 140 K 4.1 ", 25))
	sig := h.Classify(longLabs)
	require.NotNil(t, sig)
	assert.Equal(t, notetypes.LabelCondense, sig.Label)
	assert.Equal(t, notetypes.StrategyAbnormalOnly, sig.CondenseStrategy)
	assert.InDelta(t, 0.70, sig.Confidence, 1e-9)

	shortLabs := chunkOf(notetypes.ChunkLabValues, "Na 140, K 4.1")
	assert.Nil(t, h.Classify(shortLabs))

	longImg := chunkOf(notetypes.ChunkImagingReport, strings.Repeat("Lungs are clear bilaterally. ", 12))
	sig = h.Classify(longImg)
	require.NotNil(t, sig)
	assert.Equal(t, notetypes.StrategyOneLineSummary, sig.CondenseStrategy)
	assert.InDelta(t, 0.68, sig.Confidence, 1e-9)

	meds := chunkOf(notetypes.ChunkMedicationList, strings.TrimSuffix(strings.Repeat("lisinopril 10 mg daily\n", 9), "\n"))
	sig = h.Classify(meds)
	require.NotNil(t, sig)
	assert.Equal(t, notetypes.StrategyOneLineSummary, sig.CondenseStrategy)
	assert.InDelta(t, 0.64, sig.Confidence, 1e-9)

	shortMeds := chunkOf(notetypes.ChunkMedicationList, strings.TrimSuffix(strings.Repeat("aspirin 81 mg daily\n", 5), "\n"))
	assert.Nil(t, h.Classify(shortMeds))

	para := chunkOf(notetypes.ChunkParagraph, strings.Repeat("The patient remained hemodynamically stable overnight. ", 10))
	sig = h.Classify(para)
	require.NotNil(t, sig)
	assert.Equal(t, notetypes.StrategyProblemBasedSummary, sig.CondenseStrategy)
	assert.InDelta(t, 0.62, sig.Confidence, 1e-9)
}

func TestHeuristicPriorityOrder(t *testing.T) {
	h := NewHeuristicClassifier()

	// Critical wins over everything else, including attestation phrasing.
	chunk := chunkOf(notetypes.ChunkAttestation, "I have personally examined the patient.")
	chunk.IsCritical = true
	sig := h.Classify(chunk)
	require.NotNil(t, sig)
	assert.Equal(t, notetypes.LabelKeep, sig.Label)
	assert.InDelta(t, 0.95, sig.Confidence, 1e-9)

	// Boilerplate fires before the paragraph condense rule on long text.
	long := strings.Repeat("x ", 300) + "Electronically signed by Dr. Smith."
	sig = h.Classify(chunkOf(notetypes.ChunkParagraph, long))
	require.NotNil(t, sig)
	assert.Equal(t, notetypes.ReasonBoilerplate, sig.RemoveReason)
}

func TestHintSignal(t *testing.T) {
	h := NewHeuristicClassifier()

	assert.Nil(t, h.HintSignal(chunkOf(notetypes.ChunkParagraph, "plain text")))

	label := notetypes.LabelCondense
	conf := 0.60
	chunk := chunkOf(notetypes.ChunkParagraph, "plain text")
	chunk.SuggestedLabel = &label
	chunk.SuggestedConfidence = &conf

	sig := h.HintSignal(chunk)
	require.NotNil(t, sig)
	assert.Equal(t, notetypes.LabelCondense, sig.Label)
	assert.InDelta(t, 0.65, sig.Confidence, 1e-9)

	// Bonus is capped at 0.95.
	high := 0.93
	chunk.SuggestedConfidence = &high
	sig = h.HintSignal(chunk)
	require.NotNil(t, sig)
	assert.InDelta(t, 0.95, sig.Confidence, 1e-9)
}
