package inference

import (
	"context"

	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

const duplicateConfidence = 0.76

// DuplicateAdapter converts the upstream duplicate detector's verdicts into
// removal matches.  The detector itself runs before inference; its output
// arrives as a chunk-ID set on the inference context, so this adapter only
// performs a lookup.
type DuplicateAdapter struct{}

func NewDuplicateAdapter() *DuplicateAdapter {
	return &DuplicateAdapter{}
}

func (d *DuplicateAdapter) Name() string { return "duplicate_detector" }

// TryMatch flags chunks the detector marked as duplicated content with a
// fixed-confidence removal.
func (d *DuplicateAdapter) TryMatch(_ context.Context, chunk *annotation.Chunk, ictx *annotation.InferenceContext) (*MatchResult, error) {
	if ictx == nil || !ictx.IsDuplicate(chunk.ID) {
		return nil, nil
	}
	return &MatchResult{
		Label:        notetypes.LabelRemove,
		Confidence:   duplicateConfidence,
		RemoveReason: notetypes.ReasonDuplicateData,
		Source:       notetypes.SourceDuplicateDetector,
		Reason:       "content duplicated elsewhere in the document",
		Signals:      []string{"duplicate_detector:flagged"},
	}, nil
}
