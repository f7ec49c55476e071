// Package annotation implements the annotation bounded context: chunks,
// annotations, pattern rules, explanations, and extracted fields, together
// with the invariants that tie a label to its metadata.  All business rules
// concerning annotations live here; persistence and transport concerns are
// handled by separate repository and adapter layers.
package annotation

import (
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

// Chunk is a contiguous, typed segment of a clinical document.  Chunks are
// immutable input to the engine, owned and created by the external segmenter.
type Chunk struct {
	// ID identifies the chunk within its document.
	ID string `json:"id"`

	// Text is the raw chunk content.
	Text string `json:"text"`

	// Type classifies the chunk (section header, lab values, attestation...).
	Type notetypes.ChunkType `json:"type"`

	// StartIndex and EndIndex are character offsets into the source document.
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`

	// IsCritical marks content that must never be removed without the safety
	// override firing.
	IsCritical bool `json:"is_critical"`

	// CriticalType optionally names why the chunk is critical.
	CriticalType string `json:"critical_type,omitempty"`

	// SuggestedLabel and SuggestedConfidence carry an optional prior hint
	// from the segmenter.  Both are nil when no hint was supplied.
	SuggestedLabel      *notetypes.Label `json:"suggested_label,omitempty"`
	SuggestedConfidence *float64         `json:"suggested_confidence,omitempty"`
}

// Validate enforces structural integrity of an input chunk.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return errors.New(errors.ErrCodeChunkInvalid, "chunk id must not be empty")
	}
	if !c.Type.IsValid() {
		return errors.Newf(errors.ErrCodeChunkTypeUnknown, "chunk %s has unknown type %q", c.ID, c.Type)
	}
	if c.StartIndex < 0 || c.EndIndex < c.StartIndex {
		return errors.Newf(errors.ErrCodeChunkInvalid, "chunk %s has invalid offsets [%d, %d]", c.ID, c.StartIndex, c.EndIndex)
	}
	if c.SuggestedLabel != nil && !c.SuggestedLabel.IsValid() {
		return errors.Newf(errors.ErrCodeChunkInvalid, "chunk %s has unknown suggested label %q", c.ID, *c.SuggestedLabel)
	}
	if c.SuggestedConfidence != nil && (*c.SuggestedConfidence < 0 || *c.SuggestedConfidence > 1) {
		return errors.Newf(errors.ErrCodeChunkInvalid, "chunk %s has suggested confidence %.2f outside [0, 1]", c.ID, *c.SuggestedConfidence)
	}
	return nil
}

// HasHint reports whether the segmenter supplied a prior label hint.
func (c *Chunk) HasHint() bool {
	return c.SuggestedLabel != nil && c.SuggestedConfidence != nil
}

// InferenceContext carries the document-level context used for scope
// weighting and duplicate detection.
type InferenceContext struct {
	// NoteType is the clinical note type (e.g., "progress_note"), empty when
	// unknown.
	NoteType string `json:"note_type,omitempty"`

	// Service is the clinical service (e.g., "cardiology"), empty when
	// unknown.
	Service string `json:"service,omitempty"`

	// DuplicateChunkIDs is the set of chunk ids the segmenter flagged as
	// duplicates of earlier content in the same document.
	DuplicateChunkIDs map[string]struct{} `json:"-"`
}

// IsDuplicate reports whether the segmenter flagged chunkID as a duplicate.
func (ctx *InferenceContext) IsDuplicate(chunkID string) bool {
	if ctx == nil || ctx.DuplicateChunkIDs == nil {
		return false
	}
	_, ok := ctx.DuplicateChunkIDs[chunkID]
	return ok
}
