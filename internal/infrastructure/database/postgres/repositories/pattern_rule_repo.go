package repositories

import (
	"context"

	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

const patternRuleColumns = `id, pattern_type, pattern_value, label,
	remove_reason, condense_strategy, chunk_type, scope,
	effectiveness_score, active`

// PatternRuleRepository reads authored pattern rules.  Rules are written by
// the review tooling, never by the engine, so this repository is read-only
// apart from effectiveness feedback.
type PatternRuleRepository struct {
	db     DBTX
	logger logging.Logger
}

func NewPatternRuleRepository(db DBTX, log logging.Logger) *PatternRuleRepository {
	return &PatternRuleRepository{
		db:     db,
		logger: log.Named("pattern-rule-repo"),
	}
}

// ListActive returns active rules in author-defined priority order.
func (r *PatternRuleRepository) ListActive(ctx context.Context) ([]*annotation.PatternRule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+patternRuleColumns+`
		FROM pattern_rules
		WHERE active = TRUE
		ORDER BY priority, id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list pattern rules")
	}
	defer rows.Close()
	return scanPatternRules(rows)
}

// ListActiveByChunkType returns active rules whose chunk-type filter admits
// ct, in priority order.
func (r *PatternRuleRepository) ListActiveByChunkType(ctx context.Context, ct notetypes.ChunkType) ([]*annotation.PatternRule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+patternRuleColumns+`
		FROM pattern_rules
		WHERE active = TRUE
		  AND (chunk_type IS NULL OR chunk_type = $1)
		ORDER BY priority, id`, ct)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list pattern rules by chunk type")
	}
	defer rows.Close()
	return scanPatternRules(rows)
}

// RecordEffectiveness updates a rule's effectiveness score after reviewer
// feedback on its suggestions.
func (r *PatternRuleRepository) RecordEffectiveness(ctx context.Context, id string, score float64) error {
	if score < 0 || score > 1 {
		return errors.Newf(errors.ErrCodeRuleInvalid, "effectiveness score %.2f outside [0, 1]", score)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE pattern_rules SET effectiveness_score = $2 WHERE id = $1`, id, score)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to record rule effectiveness")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrCodeNotFound, "pattern rule %s not found", id)
	}
	return nil
}

func scanPatternRules(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*annotation.PatternRule, error) {
	var out []*annotation.PatternRule
	for rows.Next() {
		var (
			rule             annotation.PatternRule
			removeReason     *string
			condenseStrategy *string
			chunkType        *string
		)
		err := rows.Scan(
			&rule.ID, &rule.PatternType, &rule.PatternValue, &rule.Label,
			&removeReason, &condenseStrategy, &chunkType, &rule.Scope,
			&rule.EffectivenessScore, &rule.Active,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan pattern rule row")
		}
		if removeReason != nil {
			rule.RemoveReason = notetypes.RemoveReason(*removeReason)
		}
		if condenseStrategy != nil {
			rule.CondenseStrategy = notetypes.CondenseStrategy(*condenseStrategy)
		}
		if chunkType != nil {
			rule.ChunkType = notetypes.ChunkType(*chunkType)
		}
		out = append(out, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "pattern rule row iteration failed")
	}
	return out, nil
}
