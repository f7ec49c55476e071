package annotation

import (
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
	"github.com/nasher721/note-clarity-sub000/pkg/types/common"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

// PatternRule is an authored keyword / n-gram / regex rule mapping text
// patterns to a label.  Rules are externally authored and persisted;
// the engine treats them as read-only input.
type PatternRule struct {
	ID common.ID `json:"id"`

	PatternType  notetypes.PatternType `json:"pattern_type"`
	PatternValue string                `json:"pattern_value"`

	Label            notetypes.Label            `json:"label"`
	RemoveReason     notetypes.RemoveReason     `json:"remove_reason,omitempty"`
	CondenseStrategy notetypes.CondenseStrategy `json:"condense_strategy,omitempty"`

	// ChunkType restricts the rule to chunks of one type; empty means the
	// rule applies to every chunk type.
	ChunkType notetypes.ChunkType `json:"chunk_type,omitempty"`

	Scope notetypes.RuleScope `json:"scope"`

	// EffectivenessScore in [0, 1] reflects reviewer acceptance of the
	// rule's past suggestions and scales match confidence.
	EffectivenessScore float64 `json:"effectiveness_score"`

	// Active rules participate in matching; inactive rules are retained for
	// audit but skipped.
	Active bool `json:"active"`
}

// Validate enforces structural integrity of an authored rule.
func (r *PatternRule) Validate() error {
	if r.PatternValue == "" {
		return errors.New(errors.ErrCodeRuleInvalid, "pattern rule value must not be empty")
	}
	if !r.PatternType.IsValid() {
		return errors.Newf(errors.ErrCodeRuleInvalid, "pattern rule %s has unknown pattern type %q", r.ID, r.PatternType)
	}
	if !r.Label.IsValid() {
		return errors.Newf(errors.ErrCodeRuleInvalid, "pattern rule %s has unknown label %q", r.ID, r.Label)
	}
	if r.ChunkType != "" && !r.ChunkType.IsValid() {
		return errors.Newf(errors.ErrCodeRuleInvalid, "pattern rule %s has unknown chunk type filter %q", r.ID, r.ChunkType)
	}
	if r.EffectivenessScore < 0 || r.EffectivenessScore > 1 {
		return errors.Newf(errors.ErrCodeRuleInvalid, "pattern rule %s has effectiveness score %.2f outside [0, 1]", r.ID, r.EffectivenessScore)
	}
	return nil
}

// AppliesTo reports whether the rule's chunk-type filter admits the given
// chunk type.
func (r *PatternRule) AppliesTo(ct notetypes.ChunkType) bool {
	return r.ChunkType == "" || r.ChunkType == ct
}
