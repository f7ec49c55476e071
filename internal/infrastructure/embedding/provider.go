// Package embedding supplies text-embedding vectors to the learned-rule
// matcher: an OpenAI-backed provider plus a bounded, request-coalescing
// vector cache with an optional shared Redis tier.
package embedding

import (
	"context"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nasher721/note-clarity-sub000/internal/config"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/prometheus"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
)

// OpenAIProvider computes embeddings via the OpenAI embeddings API.  The
// client is built lazily on first use; concurrent first callers share one
// initialization.
type OpenAIProvider struct {
	cfg     config.EmbeddingConfig
	logger  logging.Logger
	metrics *prometheus.AppMetrics

	once   sync.Once
	client *openai.Client
}

func NewOpenAIProvider(cfg config.EmbeddingConfig, log logging.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		cfg:    cfg,
		logger: log.Named("openai-embeddings"),
	}
}

// WithMetrics enables call and latency recording.
func (p *OpenAIProvider) WithMetrics(m *prometheus.AppMetrics) *OpenAIProvider {
	p.metrics = m
	return p
}

// Embed returns one vector per input text, in input order.  Inputs beyond
// the configured batch size are split into multiple API calls.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	client := p.load()

	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultEmbeddingBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		callStart := time.Now()
		resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(p.cfg.Model),
		})
		prometheus.RecordEmbedding(p.metrics, "openai", time.Since(callStart), err)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(err, errors.ErrCodeEmbeddingTimeout, "embedding request timed out")
			}
			return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "embedding request failed")
		}
		if len(resp.Data) != end-start {
			return nil, errors.Newf(errors.ErrCodeEmbeddingFailed,
				"embedding response size mismatch: sent %d texts, got %d vectors", end-start, len(resp.Data))
		}
		for _, d := range resp.Data {
			if p.cfg.Dimension > 0 && len(d.Embedding) != p.cfg.Dimension {
				return nil, errors.Newf(errors.ErrCodeEmbeddingDimension,
					"embedding dimension mismatch: expected %d, got %d", p.cfg.Dimension, len(d.Embedding))
			}
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}

func (p *OpenAIProvider) load() *openai.Client {
	p.once.Do(func() {
		clientCfg := openai.DefaultConfig(p.cfg.APIKey)
		if p.cfg.BaseURL != "" {
			clientCfg.BaseURL = p.cfg.BaseURL
		}
		p.client = openai.NewClientWithConfig(clientCfg)
		p.logger.Info("embedding provider initialized",
			logging.String("model", p.cfg.Model),
			logging.Int("dimension", p.cfg.Dimension))
	})
	return p.client
}
