// Package note defines the shared enum types of the annotation engine:
// dispositions, removal reasons, condensation strategies, rule scopes,
// explanation sources, and extracted-field categories.  Domain entities in
// internal/domain/annotation build on these types.
package note

// Label is the disposition assigned to a chunk.
type Label string

const (
	LabelKeep     Label = "KEEP"
	LabelCondense Label = "CONDENSE"
	LabelRemove   Label = "REMOVE"
)

// IsValid checks if the Label is one of the three dispositions.
func (l Label) IsValid() bool {
	switch l {
	case LabelKeep, LabelCondense, LabelRemove:
		return true
	default:
		return false
	}
}

func (l Label) String() string { return string(l) }

// ChunkType classifies a segment of a clinical document.
type ChunkType string

const (
	ChunkSectionHeader  ChunkType = "section_header"
	ChunkParagraph      ChunkType = "paragraph"
	ChunkBulletList     ChunkType = "bullet_list"
	ChunkImagingReport  ChunkType = "imaging_report"
	ChunkLabValues      ChunkType = "lab_values"
	ChunkMedicationList ChunkType = "medication_list"
	ChunkVitalSigns     ChunkType = "vital_signs"
	ChunkAttestation    ChunkType = "attestation"
	ChunkUnknown        ChunkType = "unknown"
)

// IsValid checks if the ChunkType is known.
func (t ChunkType) IsValid() bool {
	switch t {
	case ChunkSectionHeader, ChunkParagraph, ChunkBulletList, ChunkImagingReport,
		ChunkLabValues, ChunkMedicationList, ChunkVitalSigns, ChunkAttestation, ChunkUnknown:
		return true
	default:
		return false
	}
}

func (t ChunkType) String() string { return string(t) }

// RemoveReason explains why a chunk was labeled REMOVE.  It is only
// meaningful when the label is REMOVE.
type RemoveReason string

const (
	ReasonBillingAttestation RemoveReason = "billing_attestation"
	ReasonBoilerplate        RemoveReason = "boilerplate_template"
	ReasonNormalROSExam      RemoveReason = "normal_ros_exam"
	ReasonAdministrative     RemoveReason = "administrative_text"
	ReasonCopiedPriorNote    RemoveReason = "copied_prior_note"
	ReasonRepeatedImaging    RemoveReason = "repeated_imaging"
	ReasonRepeatedLabs       RemoveReason = "repeated_labs"
	ReasonDuplicateData      RemoveReason = "duplicate_data"
)

// IsValid checks if the RemoveReason is known.
func (r RemoveReason) IsValid() bool {
	switch r {
	case ReasonBillingAttestation, ReasonBoilerplate, ReasonNormalROSExam,
		ReasonAdministrative, ReasonCopiedPriorNote, ReasonRepeatedImaging,
		ReasonRepeatedLabs, ReasonDuplicateData:
		return true
	default:
		return false
	}
}

func (r RemoveReason) String() string { return string(r) }

// CondenseStrategy names how a CONDENSE-labeled chunk should be shortened.
// It is only meaningful when the label is CONDENSE.
type CondenseStrategy string

const (
	StrategyAbnormalOnly        CondenseStrategy = "abnormal_only"
	StrategyOneLineSummary      CondenseStrategy = "one_line_summary"
	StrategyProblemBasedSummary CondenseStrategy = "problem_based_summary"
)

// IsValid checks if the CondenseStrategy is known.
func (s CondenseStrategy) IsValid() bool {
	switch s {
	case StrategyAbnormalOnly, StrategyOneLineSummary, StrategyProblemBasedSummary:
		return true
	default:
		return false
	}
}

func (s CondenseStrategy) String() string { return string(s) }

// RuleScope is the generality level of a learned rule, used to weight
// similarity matches.
type RuleScope string

const (
	ScopeThisDocument RuleScope = "this_document"
	ScopeNoteType     RuleScope = "note_type"
	ScopeService      RuleScope = "service"
	ScopeGlobal       RuleScope = "global"
)

// IsValid checks if the RuleScope is known.
func (s RuleScope) IsValid() bool {
	switch s {
	case ScopeThisDocument, ScopeNoteType, ScopeService, ScopeGlobal:
		return true
	default:
		return false
	}
}

func (s RuleScope) String() string { return string(s) }

// SignalSource names the pipeline component that produced an annotation.
type SignalSource string

const (
	SourceLearnedExact      SignalSource = "learned_exact"
	SourceLearnedSimilar    SignalSource = "learned_similar"
	SourcePatternRule       SignalSource = "pattern_rule"
	SourceDuplicateDetector SignalSource = "duplicate_detector"
	SourceHeuristicRules    SignalSource = "heuristic_rules"
	SourceCriticalSafety    SignalSource = "critical_safety"
	SourceCombinedSignals   SignalSource = "combined_signals"
)

// IsValid checks if the SignalSource is known.
func (s SignalSource) IsValid() bool {
	switch s {
	case SourceLearnedExact, SourceLearnedSimilar, SourcePatternRule,
		SourceDuplicateDetector, SourceHeuristicRules, SourceCriticalSafety,
		SourceCombinedSignals:
		return true
	default:
		return false
	}
}

func (s SignalSource) String() string { return string(s) }

// PatternType classifies an authored pattern rule.
//
// PatternSemantic is declared in the rule schema but has no matching
// implementation; rules carrying it are skipped by the matcher.
type PatternType string

const (
	PatternRegex    PatternType = "regex"
	PatternKeyword  PatternType = "keyword"
	PatternNGram    PatternType = "ngram"
	PatternSemantic PatternType = "semantic"
)

// IsValid checks if the PatternType is known.
func (p PatternType) IsValid() bool {
	switch p {
	case PatternRegex, PatternKeyword, PatternNGram, PatternSemantic:
		return true
	default:
		return false
	}
}

func (p PatternType) String() string { return string(p) }

// FieldCategory classifies an extracted structured field.
type FieldCategory string

const (
	FieldVitalSigns FieldCategory = "vital_signs"
	FieldLabValue   FieldCategory = "lab_value"
	FieldMedication FieldCategory = "medication"
	FieldDiagnosis  FieldCategory = "diagnosis"
	FieldProcedure  FieldCategory = "procedure"
	FieldDateTime   FieldCategory = "date_time"
	FieldKeyValue   FieldCategory = "key_value"
	FieldAllergy    FieldCategory = "allergy"
	FieldProblem    FieldCategory = "problem"
)

// IsValid checks if the FieldCategory is known.
func (c FieldCategory) IsValid() bool {
	switch c {
	case FieldVitalSigns, FieldLabValue, FieldMedication, FieldDiagnosis,
		FieldProcedure, FieldDateTime, FieldKeyValue, FieldAllergy, FieldProblem:
		return true
	default:
		return false
	}
}

func (c FieldCategory) String() string { return string(c) }

// CalibrationMode selects the post-fusion confidence adjustment policy.
type CalibrationMode string

const (
	CalibrationNone         CalibrationMode = "none"
	CalibrationConservative CalibrationMode = "conservative"
	CalibrationAggressive   CalibrationMode = "aggressive"
)

// IsValid checks if the CalibrationMode is known.
func (m CalibrationMode) IsValid() bool {
	switch m {
	case CalibrationNone, CalibrationConservative, CalibrationAggressive:
		return true
	default:
		return false
	}
}

func (m CalibrationMode) String() string { return string(m) }
