package inference

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

// Heuristic rule confidences.  The values are fixed by the decision model;
// tuning them shifts the fusion outcome for every document.
const (
	confCritical       = 0.95
	confSectionHeader  = 0.90
	confAttestation    = 0.84
	confBoilerplate    = 0.80
	confNormalROS      = 0.78
	confCopiedPrior    = 0.76
	confRepeatedImg    = 0.74
	confRepeatedLabs   = 0.72
	confAdministrative = 0.72
	confCondenseLabs   = 0.70
	confCondenseImg    = 0.68
	confCondenseMeds   = 0.64
	confCondensePara   = 0.62

	// Length thresholds for the condensation rules.
	labValuesCondenseChars = 250
	imagingCondenseChars   = 280
	medListCondenseLines   = 8
	paragraphCondenseChars = 450

	// hintBonus is added to the segmenter's prior confidence when it is used
	// as a signal, capped at hintCap.
	hintBonus = 0.05
	hintCap   = 0.95
)

// Phrase sets for the regex-driven REMOVE rules.  Matching is ordered: the
// first rule that fires wins and the rest are not evaluated.
var (
	reBoilerplate = []*regexp.Regexp{
		regexp.MustCompile(`(?i)i have personally (seen|examined|reviewed)`),
		regexp.MustCompile(`(?i)personally examined the patient`),
		regexp.MustCompile(`(?i)agree with the (above|assessment|plan|findings|documentation)`),
		regexp.MustCompile(`(?i)electronically signed( by)?`),
		regexp.MustCompile(`(?i)this (note|document) was (generated|created) (by|using)`),
		regexp.MustCompile(`(?i)reviewed and (verified|cosigned)`),
		regexp.MustCompile(`(?i)seen and examined with`),
		regexp.MustCompile(`(?i)resident note reviewed`),
	}

	reNormalROS = []*regexp.Regexp{
		regexp.MustCompile(`(?i)review of systems (is |was )?(otherwise )?negative`),
		regexp.MustCompile(`(?i)all (other )?systems reviewed and (are )?negative`),
		regexp.MustCompile(`(?i)10[- ]point ros (is )?negative`),
		regexp.MustCompile(`(?i)no acute distress`),
		regexp.MustCompile(`(?i)within normal limits`),
		regexp.MustCompile(`(?i)(exam|examination) (is |was )?(otherwise )?unremarkable`),
		regexp.MustCompile(`(?i)normal s1 s2,? no murmurs`),
	}

	reAdministrative = []*regexp.Regexp{
		regexp.MustCompile(`(?i)follow ?up (with|in|appointment)`),
		regexp.MustCompile(`(?i)please (call|contact|schedule)`),
		regexp.MustCompile(`(?i)appointment (has been )?(scheduled|made|arranged)`),
		regexp.MustCompile(`(?i)return to (the )?(clinic|office|emergency)`),
		regexp.MustCompile(`(?i)discharge (instructions|paperwork) (given|provided|reviewed)`),
		regexp.MustCompile(`(?i)case management (consulted|following)`),
	}

	reCopiedPrior = []*regexp.Regexp{
		regexp.MustCompile(`(?i)copied from (a |the )?(prior|previous) note`),
		regexp.MustCompile(`(?i)carried forward from (prior|previous)`),
		regexp.MustCompile(`(?i)as per (prior|previous) (note|documentation)`),
		regexp.MustCompile(`(?i)see (prior|previous) note for (details|full)`),
	}

	reUnchanged = []*regexp.Regexp{
		regexp.MustCompile(`(?i)unchanged (from|since|compared)`),
		regexp.MustCompile(`(?i)no interval change`),
		regexp.MustCompile(`(?i)stable compared (to|with) prior`),
		regexp.MustCompile(`(?i)redemonstrat(ed|ion of)`),
	}
)

// HeuristicClassifier produces at most one candidate signal per chunk from a
// fixed, mutually exclusive rule set evaluated in priority order.  Its output
// feeds signal fusion; it is never returned to the caller directly.
type HeuristicClassifier struct{}

// NewHeuristicClassifier constructs the classifier.  It is stateless and
// safe for concurrent use.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Classify evaluates the rule chain against the chunk and returns the first
// matching signal, or nil when no rule fires.  The segmenter's prior hint is
// not consulted here; HintSignal exposes it as an independent signal so
// fusion can weigh it alongside a fired rule.
func (h *HeuristicClassifier) Classify(chunk *annotation.Chunk) *Signal {
	if chunk.IsCritical {
		reason := "critical content retained"
		if chunk.CriticalType != "" {
			reason = fmt.Sprintf("critical content (%s) retained", chunk.CriticalType)
		}
		return &Signal{
			Label:      notetypes.LabelKeep,
			Confidence: confCritical,
			Reason:     reason,
			Source:     notetypes.SourceHeuristicRules,
		}
	}

	if chunk.Type == notetypes.ChunkSectionHeader {
		return &Signal{
			Label:      notetypes.LabelKeep,
			Confidence: confSectionHeader,
			Reason:     "section headers preserve document structure",
			Source:     notetypes.SourceHeuristicRules,
		}
	}

	if chunk.Type == notetypes.ChunkAttestation {
		return &Signal{
			Label:        notetypes.LabelRemove,
			Confidence:   confAttestation,
			Reason:       "attestation block carries no clinical content",
			Source:       notetypes.SourceHeuristicRules,
			RemoveReason: notetypes.ReasonBillingAttestation,
		}
	}

	if matchAny(reBoilerplate, chunk.Text) {
		return &Signal{
			Label:        notetypes.LabelRemove,
			Confidence:   confBoilerplate,
			Reason:       "boilerplate template phrasing",
			Source:       notetypes.SourceHeuristicRules,
			RemoveReason: notetypes.ReasonBoilerplate,
		}
	}

	if matchAny(reNormalROS, chunk.Text) {
		return &Signal{
			Label:        notetypes.LabelRemove,
			Confidence:   confNormalROS,
			Reason:       "normal review-of-systems or exam language",
			Source:       notetypes.SourceHeuristicRules,
			RemoveReason: notetypes.ReasonNormalROSExam,
		}
	}

	if matchAny(reAdministrative, chunk.Text) {
		return &Signal{
			Label:        notetypes.LabelRemove,
			Confidence:   confAdministrative,
			Reason:       "administrative or follow-up phrasing",
			Source:       notetypes.SourceHeuristicRules,
			RemoveReason: notetypes.ReasonAdministrative,
		}
	}

	if matchAny(reCopiedPrior, chunk.Text) {
		return &Signal{
			Label:        notetypes.LabelRemove,
			Confidence:   confCopiedPrior,
			Reason:       "content copied from a prior note",
			Source:       notetypes.SourceHeuristicRules,
			RemoveReason: notetypes.ReasonCopiedPriorNote,
		}
	}

	if matchAny(reUnchanged, chunk.Text) {
		switch chunk.Type {
		case notetypes.ChunkImagingReport:
			return &Signal{
				Label:        notetypes.LabelRemove,
				Confidence:   confRepeatedImg,
				Reason:       "imaging unchanged from prior study",
				Source:       notetypes.SourceHeuristicRules,
				RemoveReason: notetypes.ReasonRepeatedImaging,
			}
		case notetypes.ChunkLabValues:
			return &Signal{
				Label:        notetypes.LabelRemove,
				Confidence:   confRepeatedLabs,
				Reason:       "lab values unchanged from prior results",
				Source:       notetypes.SourceHeuristicRules,
				RemoveReason: notetypes.ReasonRepeatedLabs,
			}
		}
		// "Unchanged" phrasing in other chunk types is not a removal signal.
	}

	return h.condenseSignal(chunk)
}

// condenseSignal applies the length and type thresholds that select a
// condensation strategy.
func (h *HeuristicClassifier) condenseSignal(chunk *annotation.Chunk) *Signal {
	textLen := len(chunk.Text)

	switch chunk.Type {
	case notetypes.ChunkLabValues:
		if textLen > labValuesCondenseChars {
			return &Signal{
				Label:            notetypes.LabelCondense,
				Confidence:       confCondenseLabs,
				Reason:           "dense lab panel; abnormal values suffice",
				Source:           notetypes.SourceHeuristicRules,
				CondenseStrategy: notetypes.StrategyAbnormalOnly,
			}
		}
	case notetypes.ChunkImagingReport:
		if textLen > imagingCondenseChars {
			return &Signal{
				Label:            notetypes.LabelCondense,
				Confidence:       confCondenseImg,
				Reason:           "long imaging report; impression suffices",
				Source:           notetypes.SourceHeuristicRules,
				CondenseStrategy: notetypes.StrategyOneLineSummary,
			}
		}
	case notetypes.ChunkMedicationList:
		if strings.Count(chunk.Text, "\n")+1 > medListCondenseLines {
			return &Signal{
				Label:            notetypes.LabelCondense,
				Confidence:       confCondenseMeds,
				Reason:           "long medication list",
				Source:           notetypes.SourceHeuristicRules,
				CondenseStrategy: notetypes.StrategyOneLineSummary,
			}
		}
	case notetypes.ChunkParagraph:
		if textLen > paragraphCondenseChars {
			return &Signal{
				Label:            notetypes.LabelCondense,
				Confidence:       confCondensePara,
				Reason:           "long narrative paragraph",
				Source:           notetypes.SourceHeuristicRules,
				CondenseStrategy: notetypes.StrategyProblemBasedSummary,
			}
		}
	}
	return nil
}

// HintSignal converts the segmenter's prior label hint into a signal with
// confidence min(hint + 0.05, 0.95), or nil when no hint was supplied.
func (h *HeuristicClassifier) HintSignal(chunk *annotation.Chunk) *Signal {
	if !chunk.HasHint() {
		return nil
	}
	conf := *chunk.SuggestedConfidence + hintBonus
	if conf > hintCap {
		conf = hintCap
	}
	return &Signal{
		Label:      *chunk.SuggestedLabel,
		Confidence: conf,
		Reason:     "segmenter prior suggestion",
		Source:     notetypes.SourceHeuristicRules,
	}
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
