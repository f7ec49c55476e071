package inference

import (
	"regexp"
	"strings"

	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/inference/textnorm"
	"github.com/nasher721/note-clarity-sub000/pkg/types/common"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

// Base confidence per extraction category; structural context boosts apply
// on top, capped at extractMaxConfidence.
const (
	confVitalField     = 0.85
	confLabField       = 0.85
	confAllergyField   = 0.85
	confMedField       = 0.80
	confDiagnosisField = 0.75
	confProcedureField = 0.75
	confProblemField   = 0.70
	confDateField      = 0.65
	confKeyValueField  = 0.60

	boostSectionHeader   = 0.10
	boostCriticalChunk   = 0.08
	extractMaxConfidence = 0.95
)

type vitalPattern struct {
	label string
	re    *regexp.Regexp
}

var (
	vitalPatterns = []vitalPattern{
		{"blood_pressure", regexp.MustCompile(`(?i)\b(?:bp|blood pressure)[:\s]*([0-9]{2,3}\s*/\s*[0-9]{2,3})`)},
		{"heart_rate", regexp.MustCompile(`(?i)\b(?:hr|heart rate|pulse)[:\s]*([0-9]{2,3})\b`)},
		{"respiratory_rate", regexp.MustCompile(`(?i)\b(?:rr|resp(?:iratory)? rate)[:\s]*([0-9]{1,2})\b`)},
		{"temperature", regexp.MustCompile(`(?i)\btemp(?:erature)?[:\s]*([0-9]{2,3}(?:\.[0-9])?)`)},
		{"spo2", regexp.MustCompile(`(?i)\b(?:spo2|o2 sat(?:uration)?)[:\s]*([0-9]{2,3})\s*%?`)},
	}

	// Common chemistry and hematology analytes with a numeric value.
	reLabValue = regexp.MustCompile(`(?i)\b(wbc|hgb|hct|plt|na|k|cl|co2|bun|cr|glucose|ast|alt|bili)\b[:\s]*([0-9]+(?:\.[0-9]+)?)`)

	// "Name dose unit [tail]" medication lines, optionally bulleted.
	reMedication = regexp.MustCompile(`(?m)^\s*[-*]?\s*([A-Za-z][A-Za-z-]+(?:\s[A-Za-z-]+)?)\s+([0-9]+(?:\.[0-9]+)?\s*(?:mg|mcg|g|ml|units?)\b.*?)\s*$`)

	reDiagnosis = regexp.MustCompile(`(?im)^\s*(?:primary |secondary )?(?:diagnosis|impression|dx)[:\s]+(.+?)\s*$`)
	reProcedure = regexp.MustCompile(`(?im)^\s*(?:procedure|operation)(?: performed)?[:\s]+(.+?)\s*$`)

	reAllergyLine = regexp.MustCompile(`(?im)^\s*allerg(?:ies|y)[:\s]+(.+?)\s*$`)
	reAllergicTo  = regexp.MustCompile(`(?i)\ballergic to\s+([a-z][a-z ,-]+)`)
	reNKDA        = regexp.MustCompile(`(?i)\b(?:nkda|no known drug allergies)\b`)

	// Numbered problem-list lines.
	reProblemLine = regexp.MustCompile(`(?m)^\s*[0-9]{1,2}[.)]\s+(.+?)\s*$`)

	reDateToken = regexp.MustCompile(`\b([0-9]{1,2}/[0-9]{1,2}/[0-9]{2,4})\b`)

	// Generic "Label: value" lines caught by nothing more specific.
	reKeyValue = regexp.MustCompile(`(?m)^\s*([A-Za-z][A-Za-z /]{1,30}?)\s*:\s+(.+?)\s*$`)

	// Keys already covered by a dedicated category; the generic key/value
	// pass skips them.
	specificKeys = map[string]struct{}{
		"diagnosis": {}, "impression": {}, "dx": {}, "procedure": {},
		"operation": {}, "allergies": {}, "allergy": {}, "bp": {},
		"blood pressure": {}, "hr": {}, "heart rate": {}, "pulse": {},
		"rr": {}, "respiratory rate": {}, "temp": {}, "temperature": {},
		"spo2": {}, "o2 sat": {},
		"wbc": {}, "hgb": {}, "hct": {}, "plt": {}, "na": {}, "k": {},
		"cl": {}, "co2": {}, "bun": {}, "cr": {}, "glucose": {}, "ast": {},
		"alt": {}, "bili": {},
	}
)

// FieldExtractor pulls structured clinical data out of chunk text.  It is
// stateless and runs on every chunk regardless of the classification
// outcome.
type FieldExtractor struct {
	minConfidence float64
}

func NewFieldExtractor(minConfidence float64) *FieldExtractor {
	if minConfidence <= 0 {
		minConfidence = DefaultConfig().MinFieldConfidence
	}
	return &FieldExtractor{minConfidence: minConfidence}
}

// Extract returns the fields found in one chunk, already filtered by the
// minimum field confidence.  Deduplication across chunks happens later via
// DeduplicateFields.
func (e *FieldExtractor) Extract(chunk *annotation.Chunk) []*annotation.ExtractedField {
	var fields []*annotation.ExtractedField

	add := func(category notetypes.FieldCategory, label, value string, base float64) {
		label = strings.TrimSpace(label)
		value = strings.TrimSpace(value)
		if label == "" || value == "" {
			return
		}
		conf := e.boost(chunk, base)
		if conf < e.minConfidence {
			return
		}
		fields = append(fields, &annotation.ExtractedField{
			ID:            common.NewID(),
			Category:      category,
			Label:         label,
			Value:         value,
			Confidence:    conf,
			SourceChunkID: chunk.ID,
		})
	}

	for _, vp := range vitalPatterns {
		if m := vp.re.FindStringSubmatch(chunk.Text); m != nil {
			add(notetypes.FieldVitalSigns, vp.label, m[1], confVitalField)
		}
	}

	for _, m := range reLabValue.FindAllStringSubmatch(chunk.Text, -1) {
		add(notetypes.FieldLabValue, strings.ToUpper(m[1]), m[2], confLabField)
	}

	for _, m := range reMedication.FindAllStringSubmatch(chunk.Text, -1) {
		add(notetypes.FieldMedication, m[1], m[2], confMedField)
	}

	for _, m := range reDiagnosis.FindAllStringSubmatch(chunk.Text, -1) {
		add(notetypes.FieldDiagnosis, "diagnosis", m[1], confDiagnosisField)
	}

	for _, m := range reProcedure.FindAllStringSubmatch(chunk.Text, -1) {
		add(notetypes.FieldProcedure, "procedure", m[1], confProcedureField)
	}

	if reNKDA.MatchString(chunk.Text) {
		add(notetypes.FieldAllergy, "allergies", "NKDA", confAllergyField)
	} else {
		for _, m := range reAllergyLine.FindAllStringSubmatch(chunk.Text, -1) {
			add(notetypes.FieldAllergy, "allergies", m[1], confAllergyField)
		}
		if m := reAllergicTo.FindStringSubmatch(chunk.Text); m != nil {
			add(notetypes.FieldAllergy, "allergic_to", m[1], confAllergyField)
		}
	}

	for _, m := range reProblemLine.FindAllStringSubmatch(chunk.Text, -1) {
		add(notetypes.FieldProblem, "problem", m[1], confProblemField)
	}

	if m := reDateToken.FindStringSubmatch(chunk.Text); m != nil {
		add(notetypes.FieldDateTime, "date", m[1], confDateField)
	}

	for _, m := range reKeyValue.FindAllStringSubmatch(chunk.Text, -1) {
		key := strings.ToLower(strings.TrimSpace(m[1]))
		if _, specific := specificKeys[key]; specific {
			continue
		}
		add(notetypes.FieldKeyValue, m[1], m[2], confKeyValueField)
	}

	return fields
}

func (e *FieldExtractor) boost(chunk *annotation.Chunk, base float64) float64 {
	conf := base
	if chunk.Type == notetypes.ChunkSectionHeader {
		conf += boostSectionHeader
	}
	if chunk.IsCritical {
		conf += boostCriticalChunk
	}
	if conf > extractMaxConfidence {
		conf = extractMaxConfidence
	}
	return conf
}

// DeduplicateFields collapses fields sharing (category, normalized label,
// normalized value) across the whole document, keeping the highest-confidence
// instance.  Input order is preserved for the survivors.
func DeduplicateFields(fields []*annotation.ExtractedField) []*annotation.ExtractedField {
	type dedupKey struct {
		category notetypes.FieldCategory
		label    string
		value    string
	}

	best := make(map[dedupKey]*annotation.ExtractedField, len(fields))
	order := make([]dedupKey, 0, len(fields))
	for _, f := range fields {
		key := dedupKey{
			category: f.Category,
			label:    textnorm.Normalize(f.Label),
			value:    textnorm.Normalize(f.Value),
		}
		cur, seen := best[key]
		if !seen {
			best[key] = f
			order = append(order, key)
			continue
		}
		if f.Confidence > cur.Confidence {
			best[key] = f
		}
	}

	out := make([]*annotation.ExtractedField, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}
