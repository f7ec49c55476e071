// Package milvus provides the optional vector index for confirmed-rule
// embeddings.  When it is not configured the learned tier embeds rules in
// process, which remains the reference behavior.
package milvus

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"

	"github.com/nasher721/note-clarity-sub000/internal/config"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
)

// milvusNewClient allows tests to substitute the SDK constructor.
var milvusNewClient = client.NewClient

// ErrConnectionFailed is returned when the initial connection cannot be
// established.
var ErrConnectionFailed = errors.New(errors.ErrCodeIndexUnavailable, "milvus connection failed")

const connectTimeout = 10 * time.Second

// Client wraps the Milvus SDK connection.
type Client struct {
	mc     client.Client
	cfg    config.MilvusConfig
	logger logging.Logger
	closed atomic.Bool
}

// NewClient connects to the configured Milvus instance.
func NewClient(ctx context.Context, cfg config.MilvusConfig, logger logging.Logger) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New(errors.ErrCodeValidation, "milvus address required")
	}
	dbName := cfg.DBName
	if dbName == "" {
		dbName = "default"
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	mc, err := milvusNewClient(connectCtx, client.Config{
		Address: cfg.Addr,
		DBName:  dbName,
	})
	if err != nil {
		logger.Error("milvus connection failed",
			logging.String("addr", cfg.Addr),
			logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeIndexUnavailable, "milvus connection failed")
	}

	logger.Info("milvus client connected", logging.String("addr", cfg.Addr))
	return &Client{mc: mc, cfg: cfg, logger: logger}, nil
}

// Milvus exposes the underlying SDK client.
func (c *Client) Milvus() client.Client { return c.mc }

// HealthCheck verifies the server responds.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return errors.New(errors.ErrCodeIndexUnavailable, "milvus client closed")
	}
	state, err := c.mc.CheckHealth(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeIndexUnavailable, "milvus health check failed")
	}
	if state != nil && !state.IsHealthy {
		return errors.New(errors.ErrCodeIndexUnavailable, "milvus reports unhealthy")
	}
	return nil
}

// Close releases the connection.  Safe to call twice.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.mc.Close()
}
