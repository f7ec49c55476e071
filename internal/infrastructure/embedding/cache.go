package embedding

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nasher721/note-clarity-sub000/internal/inference"
	"github.com/nasher721/note-clarity-sub000/internal/inference/textnorm"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/prometheus"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
)

// Cache tier names used as metric labels.
const (
	cacheMemory = "embedding_memory"
	cacheShared = "embedding_shared"
)

// DefaultCacheSize bounds the in-process vector cache.
const DefaultCacheSize = 500

// SharedCache is an optional second cache level shared across replicas.
// A Redis client satisfies it.
type SharedCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// VectorCache wraps an embedding provider with an in-process cache keyed by
// the content hash of the normalized text, so texts differing only in case
// or punctuation share one vector.  When full it evicts the oldest entry by
// insertion order; reads do not refresh position.  Identical in-flight
// single-text requests are coalesced into one provider call.
type VectorCache struct {
	inner   inference.EmbeddingProvider
	shared  SharedCache
	maxSize int
	logger  logging.Logger
	metrics *prometheus.AppMetrics

	mu      sync.Mutex
	entries map[string][]float32
	order   []string

	group singleflight.Group
}

// NewVectorCache builds the caching layer around inner.  shared may be nil.
func NewVectorCache(inner inference.EmbeddingProvider, shared SharedCache, maxSize int, log logging.Logger) *VectorCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &VectorCache{
		inner:   inner,
		shared:  shared,
		maxSize: maxSize,
		logger:  log.Named("embedding-cache"),
		entries: make(map[string][]float32, maxSize),
	}
}

// WithMetrics enables hit, miss, and eviction recording.
func (c *VectorCache) WithMetrics(m *prometheus.AppMetrics) *VectorCache {
	c.metrics = m
	return c
}

// Embed returns one vector per text in input order.  Cached texts are served
// locally; the provider is called once for the uncached remainder.  Newly
// computed vectors are cached best-effort: a caching failure never fails the
// caller.
func (c *VectorCache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	switch len(texts) {
	case 0:
		return nil, nil
	case 1:
		vec, err := c.embedSingle(ctx, texts[0])
		if err != nil {
			return nil, err
		}
		return [][]float32{vec}, nil
	}

	out := make([][]float32, len(texts))
	var uncachedIdx []int
	var uncachedTexts []string
	for i, text := range texts {
		if vec, ok := c.lookup(ctx, text); ok {
			out[i] = vec
			continue
		}
		uncachedIdx = append(uncachedIdx, i)
		uncachedTexts = append(uncachedTexts, text)
	}
	if len(uncachedTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(uncachedTexts) {
		return nil, errors.Newf(errors.ErrCodeEmbeddingFailed,
			"provider returned %d vectors for %d texts", len(vectors), len(uncachedTexts))
	}
	for i, vec := range vectors {
		out[uncachedIdx[i]] = vec
		c.store(ctx, uncachedTexts[i], vec)
	}
	return out, nil
}

// embedSingle coalesces concurrent requests for the same raw text into one
// provider call.
func (c *VectorCache) embedSingle(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.lookup(ctx, text); ok {
		return vec, nil
	}

	v, err, _ := c.group.Do(text, func() (interface{}, error) {
		if vec, ok := c.lookup(ctx, text); ok {
			return vec, nil
		}
		vectors, err := c.inner.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vectors) != 1 {
			return nil, errors.Newf(errors.ErrCodeEmbeddingFailed,
				"provider returned %d vectors for one text", len(vectors))
		}
		c.store(ctx, text, vectors[0])
		return vectors[0], nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Len reports the number of locally cached vectors.
func (c *VectorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *VectorCache) lookup(ctx context.Context, text string) ([]float32, bool) {
	key := textnorm.ContentHash(text)

	c.mu.Lock()
	vec, ok := c.entries[key]
	c.mu.Unlock()
	prometheus.RecordCacheAccess(c.metrics, cacheMemory, ok)
	if ok {
		return vec, true
	}

	if c.shared == nil {
		return nil, false
	}
	raw, found, err := c.shared.Get(ctx, "embedding:"+key)
	if err != nil || !found {
		prometheus.RecordCacheAccess(c.metrics, cacheShared, false)
		return nil, false
	}
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		prometheus.RecordCacheAccess(c.metrics, cacheShared, false)
		return nil, false
	}
	prometheus.RecordCacheAccess(c.metrics, cacheShared, true)
	c.put(key, vec)
	return vec, true
}

func (c *VectorCache) store(ctx context.Context, text string, vec []float32) {
	key := textnorm.ContentHash(text)
	c.put(key, vec)

	if c.shared == nil {
		return
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.shared.Set(ctx, "embedding:"+key, string(raw)); err != nil {
		c.logger.Debug("shared cache write failed", logging.Err(err))
	}
}

// put inserts locally, evicting exactly one oldest entry when full.
func (c *VectorCache) put(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = vec
		return
	}
	if len(c.entries) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		prometheus.RecordCacheEviction(c.metrics, cacheMemory)
	}
	c.entries[key] = vec
	c.order = append(c.order, key)
}
