package note

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel_IsValid(t *testing.T) {
	assert.True(t, LabelKeep.IsValid())
	assert.True(t, LabelCondense.IsValid())
	assert.True(t, LabelRemove.IsValid())
	assert.False(t, Label("DELETE").IsValid())
	assert.False(t, Label("").IsValid())
}

func TestChunkType_IsValid(t *testing.T) {
	valid := []ChunkType{
		ChunkSectionHeader, ChunkParagraph, ChunkBulletList, ChunkImagingReport,
		ChunkLabValues, ChunkMedicationList, ChunkVitalSigns, ChunkAttestation,
		ChunkUnknown,
	}
	for _, ct := range valid {
		assert.True(t, ct.IsValid(), "expected %s to be valid", ct)
	}
	assert.False(t, ChunkType("footer").IsValid())
}

func TestRemoveReason_IsValid(t *testing.T) {
	valid := []RemoveReason{
		ReasonBillingAttestation, ReasonBoilerplate, ReasonNormalROSExam,
		ReasonAdministrative, ReasonCopiedPriorNote, ReasonRepeatedImaging,
		ReasonRepeatedLabs, ReasonDuplicateData,
	}
	for _, r := range valid {
		assert.True(t, r.IsValid(), "expected %s to be valid", r)
	}
	assert.False(t, RemoveReason("too_long").IsValid())
}

func TestCondenseStrategy_IsValid(t *testing.T) {
	assert.True(t, StrategyAbnormalOnly.IsValid())
	assert.True(t, StrategyOneLineSummary.IsValid())
	assert.True(t, StrategyProblemBasedSummary.IsValid())
	assert.False(t, CondenseStrategy("shorten").IsValid())
}

func TestRuleScope_IsValid(t *testing.T) {
	assert.True(t, ScopeThisDocument.IsValid())
	assert.True(t, ScopeNoteType.IsValid())
	assert.True(t, ScopeService.IsValid())
	assert.True(t, ScopeGlobal.IsValid())
	assert.False(t, RuleScope("tenant").IsValid())
}

func TestSignalSource_IsValid(t *testing.T) {
	valid := []SignalSource{
		SourceLearnedExact, SourceLearnedSimilar, SourcePatternRule,
		SourceDuplicateDetector, SourceHeuristicRules, SourceCriticalSafety,
		SourceCombinedSignals,
	}
	for _, s := range valid {
		assert.True(t, s.IsValid(), "expected %s to be valid", s)
	}
	assert.False(t, SignalSource("oracle").IsValid())
}

func TestPatternType_IsValid(t *testing.T) {
	assert.True(t, PatternRegex.IsValid())
	assert.True(t, PatternKeyword.IsValid())
	assert.True(t, PatternNGram.IsValid())
	assert.True(t, PatternSemantic.IsValid())
	assert.False(t, PatternType("glob").IsValid())
}

func TestFieldCategory_IsValid(t *testing.T) {
	valid := []FieldCategory{
		FieldVitalSigns, FieldLabValue, FieldMedication, FieldDiagnosis,
		FieldProcedure, FieldDateTime, FieldKeyValue, FieldAllergy, FieldProblem,
	}
	for _, c := range valid {
		assert.True(t, c.IsValid(), "expected %s to be valid", c)
	}
	assert.False(t, FieldCategory("insurance").IsValid())
}

func TestCalibrationMode_IsValid(t *testing.T) {
	assert.True(t, CalibrationNone.IsValid())
	assert.True(t, CalibrationConservative.IsValid())
	assert.True(t, CalibrationAggressive.IsValid())
	assert.False(t, CalibrationMode("bold").IsValid())
}

func TestString_RoundTrips(t *testing.T) {
	assert.Equal(t, "KEEP", LabelKeep.String())
	assert.Equal(t, "duplicate_data", ReasonDuplicateData.String())
	assert.Equal(t, "one_line_summary", StrategyOneLineSummary.String())
	assert.Equal(t, "learned_exact", SourceLearnedExact.String())
	assert.Equal(t, "lab_values", ChunkLabValues.String())
}
