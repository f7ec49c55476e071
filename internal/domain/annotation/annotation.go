package annotation

import (
	"time"

	"github.com/nasher721/note-clarity-sub000/pkg/errors"
	"github.com/nasher721/note-clarity-sub000/pkg/types/common"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

// Annotation is the label plus metadata assigned to a chunk, either by this
// engine or, as a learned input, previously produced with human confirmation.
type Annotation struct {
	ID      common.ID `json:"id"`
	ChunkID string    `json:"chunk_id"`

	// RawText is the chunk text the annotation was made against.  Learned
	// rules match new chunks against this text.
	RawText string `json:"raw_text"`

	// SectionType is the chunk type at annotation time.
	SectionType notetypes.ChunkType `json:"section_type"`

	Label notetypes.Label `json:"label"`

	// RemoveReason is only meaningful when Label is REMOVE.
	RemoveReason notetypes.RemoveReason `json:"remove_reason,omitempty"`

	// CondenseStrategy is only meaningful when Label is CONDENSE.
	CondenseStrategy notetypes.CondenseStrategy `json:"condense_strategy,omitempty"`

	// Scope is the generality level at which the annotation applies when
	// used as a learned rule.
	Scope notetypes.RuleScope `json:"scope"`

	Timestamp time.Time     `json:"timestamp"`
	UserID    common.UserID `json:"user_id"`

	// Confirmed marks annotations reviewed by a human.  Only confirmed
	// annotations participate in learned-rule matching.
	Confirmed bool `json:"confirmed"`
}

// NewSystemAnnotation constructs an engine-produced annotation for a chunk.
// The scope defaults to this_document since the engine never generalises its
// own output without human confirmation.
func NewSystemAnnotation(chunk *Chunk, label notetypes.Label) *Annotation {
	return &Annotation{
		ID:          common.NewID(),
		ChunkID:     chunk.ID,
		RawText:     chunk.Text,
		SectionType: chunk.Type,
		Label:       label,
		Scope:       notetypes.ScopeThisDocument,
		Timestamp:   time.Now().UTC(),
		UserID:      common.SystemUser,
	}
}

// Validate enforces the label-metadata invariants: a remove reason requires
// the REMOVE label, a condense strategy requires the CONDENSE label, and all
// enum fields must carry known values.
func (a *Annotation) Validate() error {
	if a.ChunkID == "" {
		return errors.New(errors.ErrCodeAnnotationInvalid, "annotation chunk id must not be empty")
	}
	if !a.Label.IsValid() {
		return errors.Newf(errors.ErrCodeAnnotationInvalid, "annotation for chunk %s has unknown label %q", a.ChunkID, a.Label)
	}
	if a.RemoveReason != "" {
		if a.Label != notetypes.LabelRemove {
			return errors.Newf(errors.ErrCodeAnnotationInvalid,
				"annotation for chunk %s carries remove reason %q with label %s", a.ChunkID, a.RemoveReason, a.Label)
		}
		if !a.RemoveReason.IsValid() {
			return errors.Newf(errors.ErrCodeAnnotationInvalid,
				"annotation for chunk %s has unknown remove reason %q", a.ChunkID, a.RemoveReason)
		}
	}
	if a.CondenseStrategy != "" {
		if a.Label != notetypes.LabelCondense {
			return errors.Newf(errors.ErrCodeAnnotationInvalid,
				"annotation for chunk %s carries condense strategy %q with label %s", a.ChunkID, a.CondenseStrategy, a.Label)
		}
		if !a.CondenseStrategy.IsValid() {
			return errors.Newf(errors.ErrCodeAnnotationInvalid,
				"annotation for chunk %s has unknown condense strategy %q", a.ChunkID, a.CondenseStrategy)
		}
	}
	if !a.Scope.IsValid() {
		return errors.Newf(errors.ErrCodeAnnotationInvalid, "annotation for chunk %s has unknown scope %q", a.ChunkID, a.Scope)
	}
	return nil
}

// IsSystem reports whether the annotation was produced by the engine rather
// than a human reviewer.
func (a *Annotation) IsSystem() bool {
	return a.UserID == common.SystemUser
}

// ModelExplanation describes how the engine arrived at an annotation.
// One per annotated chunk; ephemeral output, never persisted as authority.
type ModelExplanation struct {
	Source     notetypes.SignalSource `json:"source"`
	Confidence float64                `json:"confidence"`
	Reason     string                 `json:"reason,omitempty"`
	Signals    []string               `json:"signals,omitempty"`
}

// ExtractedField is a structured datum pulled from a chunk by the field
// extractor.
type ExtractedField struct {
	ID            common.ID               `json:"id"`
	Category      notetypes.FieldCategory `json:"category"`
	Label         string                  `json:"label"`
	Value         string                  `json:"value"`
	Confidence    float64                 `json:"confidence"`
	SourceChunkID string                  `json:"source_chunk_id"`
}

// InferenceResult aggregates the output of one document-level inference pass.
type InferenceResult struct {
	Annotations     []*Annotation                `json:"annotations"`
	Explanations    map[string]*ModelExplanation `json:"explanations"`
	ExtractedFields []*ExtractedField            `json:"extracted_fields"`
}
