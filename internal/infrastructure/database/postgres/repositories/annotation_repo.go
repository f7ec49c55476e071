package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
	"github.com/nasher721/note-clarity-sub000/pkg/types/common"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

const annotationColumns = `id, chunk_id, raw_text, section_type, label,
	remove_reason, condense_strategy, scope, created_at, user_id, confirmed`

// AnnotationRepository persists annotations and serves the confirmed set used
// as learned rules.  Context scoping (note_type, service) is stored alongside
// each row at confirmation time so ListConfirmed can filter server-side.
type AnnotationRepository struct {
	db     TxStarter
	logger logging.Logger
}

func NewAnnotationRepository(db TxStarter, log logging.Logger) *AnnotationRepository {
	return &AnnotationRepository{
		db:     db,
		logger: log.Named("annotation-repo"),
	}
}

// Save persists one annotation.
func (r *AnnotationRepository) Save(ctx context.Context, a *annotation.Annotation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO annotations
			(id, chunk_id, raw_text, section_type, label, remove_reason,
			 condense_strategy, scope, created_at, user_id, confirmed)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)`,
		a.ID, a.ChunkID, a.RawText, a.SectionType, a.Label,
		string(a.RemoveReason), string(a.CondenseStrategy),
		a.Scope, a.Timestamp, a.UserID, a.Confirmed,
	)
	return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save annotation")
}

// SaveBatch persists a document's annotations in one transaction.
func (r *AnnotationRepository) SaveBatch(ctx context.Context, annotations []*annotation.Annotation) error {
	if len(annotations) == 0 {
		return nil
	}
	for _, a := range annotations {
		if err := a.Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range annotations {
		batch.Queue(`
			INSERT INTO annotations
				(id, chunk_id, raw_text, section_type, label, remove_reason,
				 condense_strategy, scope, created_at, user_id, confirmed)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)`,
			a.ID, a.ChunkID, a.RawText, a.SectionType, a.Label,
			string(a.RemoveReason), string(a.CondenseStrategy),
			a.Scope, a.Timestamp, a.UserID, a.Confirmed,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save annotation batch")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit annotation batch")
	}

	r.logger.Debug("saved annotation batch", logging.Int("count", len(annotations)))
	return nil
}

// GetByChunkID returns the most recent annotation for a chunk.
func (r *AnnotationRepository) GetByChunkID(ctx context.Context, chunkID string) (*annotation.Annotation, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+annotationColumns+`
		FROM annotations
		WHERE chunk_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, chunkID)

	a, err := scanAnnotation(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.Newf(errors.ErrCodeAnnotationNotFound, "no annotation for chunk %s", chunkID)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load annotation")
	}
	return a, nil
}

// ListConfirmed returns the confirmed annotations visible at the given
// context: all global and this_document rows plus note_type rows matching
// noteType and service rows matching service.
func (r *AnnotationRepository) ListConfirmed(ctx context.Context, noteType, service string) ([]*annotation.Annotation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+annotationColumns+`
		FROM annotations
		WHERE confirmed = TRUE
		  AND (scope IN ('global', 'this_document')
			OR (scope = 'note_type' AND note_type = $1)
			OR (scope = 'service' AND service = $2))
		ORDER BY created_at DESC`,
		noteType, service)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list confirmed annotations")
	}
	defer rows.Close()

	var out []*annotation.Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan annotation row")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "annotation row iteration failed")
	}
	return out, nil
}

// Confirm marks an annotation as human-reviewed at the given scope and
// context, promoting it into the learned-rule set.
func (r *AnnotationRepository) Confirm(ctx context.Context, id common.ID, scope notetypes.RuleScope, noteType, service string, userID common.UserID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE annotations
		SET confirmed = TRUE, scope = $2, note_type = $3, service = $4,
			user_id = $5, created_at = $6
		WHERE id = $1`,
		id, scope, noteType, service, userID, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to confirm annotation")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrCodeAnnotationNotFound, "annotation %s not found", id)
	}
	return nil
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(row rowScanner) (*annotation.Annotation, error) {
	var (
		a                annotation.Annotation
		removeReason     *string
		condenseStrategy *string
	)
	err := row.Scan(
		&a.ID, &a.ChunkID, &a.RawText, &a.SectionType, &a.Label,
		&removeReason, &condenseStrategy, &a.Scope, &a.Timestamp,
		&a.UserID, &a.Confirmed,
	)
	if err != nil {
		return nil, err
	}
	if removeReason != nil {
		a.RemoveReason = notetypes.RemoveReason(*removeReason)
	}
	if condenseStrategy != nil {
		a.CondenseStrategy = notetypes.CondenseStrategy(*condenseStrategy)
	}
	return &a, nil
}
