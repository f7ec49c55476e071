package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/nasher721/note-clarity-sub000/internal/config"
	"github.com/nasher721/note-clarity-sub000/internal/inference"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
)

const (
	ruleCollectionSuffix = "_learned_rules"

	fieldID     = "id"
	fieldScope  = "scope"
	fieldVector = "vector"

	defaultNList  = 128
	defaultNProbe = 16
	defaultEf     = 64
)

// RuleVector is one confirmed rule prepared for indexing.
type RuleVector struct {
	ID     string
	Scope  string
	Vector []float32
}

// RuleIndex stores confirmed-rule embeddings in a Milvus collection and
// serves top-K cosine queries for the learned tier.  It implements
// inference.VectorSearcher.
type RuleIndex struct {
	mc         client.Client
	collection string
	dim        int
	indexType  string
	topK       int
	logger     logging.Logger
}

// NewRuleIndex builds the index over an established connection.
func NewRuleIndex(c *Client, cfg config.MilvusConfig, logger logging.Logger) *RuleIndex {
	return newRuleIndexWithClient(c.Milvus(), cfg, logger)
}

func newRuleIndexWithClient(mc client.Client, cfg config.MilvusConfig, logger logging.Logger) *RuleIndex {
	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "noteclarity"
	}
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = 5
	}
	return &RuleIndex{
		mc:         mc,
		collection: prefix + ruleCollectionSuffix,
		dim:        cfg.EmbeddingDim,
		indexType:  cfg.IndexType,
		topK:       topK,
		logger:     logger.Named("rule-index"),
	}
}

// Collection reports the collection name the index operates on.
func (r *RuleIndex) Collection() string { return r.collection }

// EnsureCollection creates, indexes, and loads the rule collection if it
// does not already exist.
func (r *RuleIndex) EnsureCollection(ctx context.Context) error {
	exists, err := r.mc.HasCollection(ctx, r.collection)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "failed to check collection")
	}
	if !exists {
		schema := &entity.Schema{
			CollectionName: r.collection,
			Description:    "confirmed annotation rule embeddings",
			Fields: []*entity.Field{
				entity.NewField().WithName(fieldID).
					WithDataType(entity.FieldTypeVarChar).
					WithMaxLength(64).
					WithIsPrimaryKey(true),
				entity.NewField().WithName(fieldScope).
					WithDataType(entity.FieldTypeVarChar).
					WithMaxLength(32),
				entity.NewField().WithName(fieldVector).
					WithDataType(entity.FieldTypeFloatVector).
					WithDim(int64(r.dim)),
			},
		}
		if err := r.mc.CreateCollection(ctx, schema, 2); err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "failed to create collection")
		}

		idx, err := r.buildIndex()
		if err != nil {
			return err
		}
		if err := r.mc.CreateIndex(ctx, r.collection, fieldVector, idx, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "failed to create index")
		}
		r.logger.Info("rule collection created",
			logging.String("collection", r.collection),
			logging.Int("dim", r.dim))
	}

	if err := r.mc.LoadCollection(ctx, r.collection, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "failed to load collection")
	}
	return nil
}

func (r *RuleIndex) buildIndex() (entity.Index, error) {
	var (
		idx entity.Index
		err error
	)
	switch r.indexType {
	case "HNSW":
		idx, err = entity.NewIndexHNSW(entity.COSINE, 8, 200)
	default:
		idx, err = entity.NewIndexIvfFlat(entity.COSINE, defaultNList)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexUnavailable, "failed to build index params")
	}
	return idx, nil
}

// UpsertRules writes rule vectors to the collection.  Vectors with the wrong
// dimension are rejected before the round trip.
func (r *RuleIndex) UpsertRules(ctx context.Context, rules []RuleVector) error {
	if len(rules) == 0 {
		return nil
	}

	ids := make([]string, len(rules))
	scopes := make([]string, len(rules))
	vectors := make([][]float32, len(rules))
	for i, rule := range rules {
		if rule.ID == "" {
			return errors.New(errors.ErrCodeValidation, "rule id required")
		}
		if len(rule.Vector) != r.dim {
			return errors.Newf(errors.ErrCodeEmbeddingDimension,
				"rule %s vector has dimension %d, collection expects %d",
				rule.ID, len(rule.Vector), r.dim)
		}
		ids[i] = rule.ID
		scopes[i] = rule.Scope
		vectors[i] = rule.Vector
	}

	_, err := r.mc.Upsert(ctx, r.collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldScope, scopes),
		entity.NewColumnFloatVector(fieldVector, r.dim, vectors),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUpsertFailed, "failed to upsert rule vectors")
	}

	r.logger.Debug("rule vectors upserted", logging.Int("count", len(rules)))
	return nil
}

// DeleteRule removes a rule vector, used when a confirmation is revoked.
func (r *RuleIndex) DeleteRule(ctx context.Context, id string) error {
	expr := fmt.Sprintf("%s in [%q]", fieldID, id)
	if err := r.mc.Delete(ctx, r.collection, "", expr); err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUpsertFailed, "failed to delete rule vector")
	}
	return nil
}

// SearchSimilar returns the rules most similar to the query vector, cosine
// scored, best first.
func (r *RuleIndex) SearchSimilar(ctx context.Context, vector []float32, topK int) ([]inference.VectorHit, error) {
	if len(vector) != r.dim {
		return nil, errors.Newf(errors.ErrCodeEmbeddingDimension,
			"query vector has dimension %d, collection expects %d", len(vector), r.dim)
	}
	if topK <= 0 {
		topK = r.topK
	}

	sp, err := r.searchParam()
	if err != nil {
		return nil, err
	}

	results, err := r.mc.Search(ctx, r.collection, nil, "", []string{fieldScope},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector, entity.COSINE, topK, sp)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexSearchFailed, "rule search failed")
	}

	var hits []inference.VectorHit
	for _, res := range results {
		idCol, ok := res.IDs.(*entity.ColumnVarChar)
		if !ok {
			return nil, errors.New(errors.ErrCodeIndexSearchFailed, "unexpected id column type")
		}
		for i, id := range idCol.Data() {
			if i >= len(res.Scores) {
				break
			}
			hits = append(hits, inference.VectorHit{
				ID:    id,
				Score: float64(res.Scores[i]),
			})
		}
	}
	return hits, nil
}

func (r *RuleIndex) searchParam() (entity.SearchParam, error) {
	var (
		sp  entity.SearchParam
		err error
	)
	switch r.indexType {
	case "HNSW":
		sp, err = entity.NewIndexHNSWSearchParam(defaultEf)
	default:
		sp, err = entity.NewIndexIvfFlatSearchParam(defaultNProbe)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexSearchFailed, "failed to build search params")
	}
	return sp, nil
}
