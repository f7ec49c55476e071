package annotation

import (
	"time"

	"github.com/google/uuid"
)

// AnnotationsCreatedEvent is emitted after an inference pass produces
// annotations for a document.  Downstream consumers (review queues, audit
// pipelines) subscribe to it on the annotations.created topic.
type AnnotationsCreatedEvent struct {
	EventID    string    `json:"event_id"`
	DocumentID string    `json:"document_id"`
	NoteType   string    `json:"note_type,omitempty"`
	Service    string    `json:"service,omitempty"`
	Count      int       `json:"count"`
	ChunkIDs   []string  `json:"chunk_ids"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewAnnotationsCreatedEvent builds the event for a completed inference pass.
func NewAnnotationsCreatedEvent(documentID string, ctx *InferenceContext, annotations []*Annotation) *AnnotationsCreatedEvent {
	chunkIDs := make([]string, 0, len(annotations))
	for _, a := range annotations {
		chunkIDs = append(chunkIDs, a.ChunkID)
	}
	ev := &AnnotationsCreatedEvent{
		EventID:    uuid.New().String(),
		DocumentID: documentID,
		Count:      len(annotations),
		ChunkIDs:   chunkIDs,
		OccurredAt: time.Now().UTC(),
	}
	if ctx != nil {
		ev.NoteType = ctx.NoteType
		ev.Service = ctx.Service
	}
	return ev
}
