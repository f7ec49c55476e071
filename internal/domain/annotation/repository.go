package annotation

import (
	"context"

	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

// Repository provides persistence for annotations produced by the engine and
// read access to the confirmed annotations that act as learned rules.
// Implementations live in internal/infrastructure/database.
type Repository interface {
	// Save persists an engine-produced annotation.
	Save(ctx context.Context, a *Annotation) error

	// SaveBatch persists a document's annotations in one transaction.
	SaveBatch(ctx context.Context, annotations []*Annotation) error

	// GetByChunkID returns the most recent annotation for a chunk, or a
	// not-found error.
	GetByChunkID(ctx context.Context, chunkID string) (*Annotation, error)

	// ListConfirmed returns the confirmed annotations visible at the given
	// context: all global and this_document rules plus note_type rules for
	// noteType and service rules for service.  Empty noteType or service
	// simply widens nothing.
	ListConfirmed(ctx context.Context, noteType, service string) ([]*Annotation, error)
}

// PatternRuleRepository provides read access to authored pattern rules.
type PatternRuleRepository interface {
	// ListActive returns active rules in author-defined priority order.
	ListActive(ctx context.Context) ([]*PatternRule, error)

	// ListActiveByChunkType returns active rules whose chunk-type filter
	// admits ct, in priority order.
	ListActiveByChunkType(ctx context.Context, ct notetypes.ChunkType) ([]*PatternRule, error)
}

// EventPublisher publishes domain events to interested downstream consumers.
// Publishing is fire-and-forget from the engine's perspective: a publish
// failure is logged by the implementation and never fails the caller.
type EventPublisher interface {
	PublishAnnotationsCreated(ctx context.Context, event *AnnotationsCreatedEvent) error
}
