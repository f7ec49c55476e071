// Package redis provides the shared cache tier.  The engine uses it as an
// optional second level behind the in-process embedding cache so that
// replicas share computed vectors.
package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nasher721/note-clarity-sub000/internal/config"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/pkg/errors"
)

var (
	ErrClientClosed     = errors.New(errors.ErrCodeCacheError, "redis client is closed")
	ErrConnectionFailed = errors.New(errors.ErrCodeCacheError, "redis connection failed")
)

// Client wraps the go-redis client with key prefixing and lifecycle
// management.
type Client struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    logging.Logger

	mu     sync.RWMutex
	closed bool
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(cfg config.RedisConfig, log logging.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, ErrConnectionFailed.WithCause(err)
	}

	log.Info("Redis client connected", logging.String("addr", cfg.Addr))

	return &Client{
		rdb:       rdb,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.DefaultTTL,
		logger:    log,
	}, nil
}

// Get reads a raw value; a cache miss returns ("", false, nil).
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if c.isClosed() {
		return "", false, ErrClientClosed
	}
	val, err := c.rdb.Get(ctx, c.prefixed(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeCacheError, "redis get failed")
	}
	return val, true, nil
}

// Set writes a raw value with the client's default TTL.
func (c *Client) Set(ctx context.Context, key, value string) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	err := c.rdb.Set(ctx, c.prefixed(key), value, c.ttl).Err()
	return errors.Wrap(err, errors.ErrCodeCacheError, "redis set failed")
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.rdb.Ping(ctx).Err()
}

// Close shuts the client down.  Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.rdb.Close(); err != nil {
		c.logger.Error("Failed to close Redis client", logging.Err(err))
		return err
	}
	c.logger.Info("Closed Redis client")
	return nil
}

func (c *Client) prefixed(key string) string {
	if c.keyPrefix == "" {
		return key
	}
	return c.keyPrefix + ":" + key
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
