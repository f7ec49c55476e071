package inference

import (
	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

const (
	guardConfidencePenalty = 0.15
	guardConfidenceFloor   = 0.60
)

// ApplyCriticalSafetyGuard is the last stage before a decision leaves the
// engine: a REMOVE verdict on a chunk carrying critical content is overridden
// to KEEP.  The override keeps an audit trail of the reversed decision in the
// signal list and reduces confidence, flooring it at 0.60.  CONDENSE verdicts
// pass through; condensation preserves critical content by contract.
func ApplyCriticalSafetyGuard(chunk *annotation.Chunk, res *MatchResult) *MatchResult {
	if res == nil || !chunk.IsCritical || res.Label != notetypes.LabelRemove {
		return res
	}

	conf := res.Confidence - guardConfidencePenalty
	if conf < guardConfidenceFloor {
		conf = guardConfidenceFloor
	}

	reason := "removal overridden: chunk contains critical content"
	if chunk.CriticalType != "" {
		reason = "removal overridden: chunk contains critical content (" + chunk.CriticalType + ")"
	}

	return &MatchResult{
		Label:            notetypes.LabelKeep,
		Confidence:       conf,
		Source:           notetypes.SourceCriticalSafety,
		Reason:           reason,
		CondenseStrategy: "",
		RemoveReason:     "",
		Signals:          append(append([]string{}, res.Signals...), "overridden:"+string(res.Source)),
	}
}
