package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/pkg/types/common"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

func fieldsByCategory(fields []*annotation.ExtractedField, cat notetypes.FieldCategory) []*annotation.ExtractedField {
	var out []*annotation.ExtractedField
	for _, f := range fields {
		if f.Category == cat {
			out = append(out, f)
		}
	}
	return out
}

func TestExtractVitals(t *testing.T) {
	e := NewFieldExtractor(0)
	fields := e.Extract(chunkOf(notetypes.ChunkVitalSigns,
		"BP 128/76, HR 88, RR 18, Temp 98.6, SpO2 95%"))

	vitals := fieldsByCategory(fields, notetypes.FieldVitalSigns)
	require.Len(t, vitals, 5)

	byLabel := map[string]string{}
	for _, f := range vitals {
		byLabel[f.Label] = f.Value
		assert.InDelta(t, 0.85, f.Confidence, 1e-9)
		assert.Equal(t, "c1", f.SourceChunkID)
	}
	assert.Equal(t, "128/76", byLabel["blood_pressure"])
	assert.Equal(t, "88", byLabel["heart_rate"])
	assert.Equal(t, "18", byLabel["respiratory_rate"])
	assert.Equal(t, "98.6", byLabel["temperature"])
	assert.Equal(t, "95", byLabel["spo2"])
}

func TestExtractLabPanel(t *testing.T) {
	e := NewFieldExtractor(0)
	fields := e.Extract(chunkOf(notetypes.ChunkLabValues,
		"WBC 12.1 Hgb 10.2 Na 138 K 4.1 Cr 1.4"))

	labs := fieldsByCategory(fields, notetypes.FieldLabValue)
	require.Len(t, labs, 5)

	byLabel := map[string]string{}
	for _, f := range labs {
		byLabel[f.Label] = f.Value
	}
	assert.Equal(t, "12.1", byLabel["WBC"])
	assert.Equal(t, "138", byLabel["NA"])
	assert.Equal(t, "1.4", byLabel["CR"])
}

func TestExtractMedications(t *testing.T) {
	e := NewFieldExtractor(0)
	fields := e.Extract(chunkOf(notetypes.ChunkMedicationList,
		"lisinopril 10 mg daily\nmetformin 500 mg twice daily\n- aspirin 81 mg daily"))

	meds := fieldsByCategory(fields, notetypes.FieldMedication)
	require.Len(t, meds, 3)
	assert.Equal(t, "lisinopril", meds[0].Label)
	assert.Equal(t, "10 mg daily", meds[0].Value)
	assert.Equal(t, "aspirin", meds[2].Label)
}

func TestExtractDiagnosisAndProcedure(t *testing.T) {
	e := NewFieldExtractor(0)
	fields := e.Extract(chunkOf(notetypes.ChunkParagraph,
		"Impression: Community-acquired pneumonia\nProcedure: thoracentesis, left"))

	diag := fieldsByCategory(fields, notetypes.FieldDiagnosis)
	require.Len(t, diag, 1)
	assert.Equal(t, "Community-acquired pneumonia", diag[0].Value)

	proc := fieldsByCategory(fields, notetypes.FieldProcedure)
	require.Len(t, proc, 1)
	assert.Equal(t, "thoracentesis, left", proc[0].Value)

	// Dedicated categories suppress the generic key/value pass.
	assert.Empty(t, fieldsByCategory(fields, notetypes.FieldKeyValue))
}

func TestExtractAllergies(t *testing.T) {
	e := NewFieldExtractor(0)

	fields := e.Extract(chunkOf(notetypes.ChunkParagraph, "No known drug allergies."))
	allergies := fieldsByCategory(fields, notetypes.FieldAllergy)
	require.Len(t, allergies, 1)
	assert.Equal(t, "NKDA", allergies[0].Value)

	fields = e.Extract(chunkOf(notetypes.ChunkParagraph, "Patient is allergic to penicillin and sulfa"))
	allergies = fieldsByCategory(fields, notetypes.FieldAllergy)
	require.Len(t, allergies, 1)
	assert.Equal(t, "allergic_to", allergies[0].Label)
	assert.Contains(t, allergies[0].Value, "penicillin")
}

func TestExtractProblemListAndDate(t *testing.T) {
	e := NewFieldExtractor(0)
	fields := e.Extract(chunkOf(notetypes.ChunkBulletList,
		"1. Pneumonia\n2. Acute kidney injury\nAdmitted 03/14/2026"))

	problems := fieldsByCategory(fields, notetypes.FieldProblem)
	require.Len(t, problems, 2)
	assert.Equal(t, "Pneumonia", problems[0].Value)
	assert.Equal(t, "Acute kidney injury", problems[1].Value)

	dates := fieldsByCategory(fields, notetypes.FieldDateTime)
	require.Len(t, dates, 1)
	assert.Equal(t, "03/14/2026", dates[0].Value)
}

func TestExtractGenericKeyValue(t *testing.T) {
	e := NewFieldExtractor(0)
	fields := e.Extract(chunkOf(notetypes.ChunkParagraph, "Disposition: discharge home"))

	kv := fieldsByCategory(fields, notetypes.FieldKeyValue)
	require.Len(t, kv, 1)
	assert.Equal(t, "Disposition", kv[0].Label)
	assert.Equal(t, "discharge home", kv[0].Value)
	assert.InDelta(t, 0.60, kv[0].Confidence, 1e-9)
}

func TestExtractConfidenceBoosts(t *testing.T) {
	e := NewFieldExtractor(0)

	critical := chunkOf(notetypes.ChunkParagraph, "No known drug allergies.")
	critical.IsCritical = true
	fields := e.Extract(critical)
	require.Len(t, fieldsByCategory(fields, notetypes.FieldAllergy), 1)
	assert.InDelta(t, 0.93, fieldsByCategory(fields, notetypes.FieldAllergy)[0].Confidence, 1e-9)

	// Section header and critical boosts together hit the 0.95 cap.
	header := chunkOf(notetypes.ChunkSectionHeader, "Allergies: penicillin")
	header.IsCritical = true
	fields = e.Extract(header)
	allergies := fieldsByCategory(fields, notetypes.FieldAllergy)
	require.Len(t, allergies, 1)
	assert.InDelta(t, 0.95, allergies[0].Confidence, 1e-9)
}

func TestExtractMinConfidenceFilter(t *testing.T) {
	e := NewFieldExtractor(0.7)
	fields := e.Extract(chunkOf(notetypes.ChunkParagraph, "Disposition: discharge home"))
	assert.Empty(t, fields)
}

func TestDeduplicateFields(t *testing.T) {
	a := &annotation.ExtractedField{ID: common.NewID(), Category: notetypes.FieldLabValue, Label: "NA", Value: "138", Confidence: 0.85, SourceChunkID: "c1"}
	b := &annotation.ExtractedField{ID: common.NewID(), Category: notetypes.FieldLabValue, Label: "na", Value: "138", Confidence: 0.93, SourceChunkID: "c2"}
	c := &annotation.ExtractedField{ID: common.NewID(), Category: notetypes.FieldLabValue, Label: "K", Value: "4.1", Confidence: 0.85, SourceChunkID: "c1"}

	out := DeduplicateFields([]*annotation.ExtractedField{a, b, c})
	require.Len(t, out, 2)
	assert.Equal(t, "c2", out[0].SourceChunkID)
	assert.InDelta(t, 0.93, out[0].Confidence, 1e-9)
	assert.Equal(t, "K", out[1].Label)
}
