// Package config defines all configuration structures for the note-clarity
// annotation engine.  No I/O or parsing logic lives here, only plain data
// types and validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters for the shared embedding
// cache tier.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Apache Kafka producer parameters for annotation events.
type KafkaConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Brokers         []string `mapstructure:"brokers"`
	Topic           string   `mapstructure:"topic"`
	ProducerRetries int      `mapstructure:"producer_retries"`
	BatchSize       int      `mapstructure:"batch_size"`
	RequiredAcks    int      `mapstructure:"required_acks"`
}

// MilvusConfig holds the optional vector-store connection parameters used by
// the semantic rule index.
type MilvusConfig struct {
	Addr             string `mapstructure:"addr"`
	DBName           string `mapstructure:"db_name"`
	CollectionPrefix string `mapstructure:"collection_prefix"`
	EmbeddingDim     int    `mapstructure:"embedding_dim"`
	IndexType        string `mapstructure:"index_type"`
	DefaultTopK      int    `mapstructure:"default_top_k"`
}

// EmbeddingConfig holds the embedding provider parameters.  The provider is
// optional: when APIKey is empty the learned-rule matcher skips its semantic
// tier and relies on lexical overlap alone.
type EmbeddingConfig struct {
	Provider  string        `mapstructure:"provider"` // "openai" | "none"
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	Dimension int           `mapstructure:"dimension"`
	Timeout   time.Duration `mapstructure:"timeout"`
	BatchSize int           `mapstructure:"batch_size"`
	CacheSize int           `mapstructure:"cache_size"`
}

// InferenceConfig holds the decision-pipeline thresholds and feature toggles.
type InferenceConfig struct {
	// SemanticThreshold is the minimum cosine similarity for a learned rule
	// to match via embeddings.
	SemanticThreshold float64 `mapstructure:"semantic_threshold"`

	// JaccardThreshold is the minimum token-overlap score for the lexical
	// fallback tier of the learned-rule matcher.
	JaccardThreshold float64 `mapstructure:"jaccard_threshold"`

	// MinConfidenceThreshold is the floor below which fused suggestions are
	// discarded instead of surfaced to reviewers.
	MinConfidenceThreshold float64 `mapstructure:"min_confidence_threshold"`

	// MinFieldConfidence is the floor applied to extracted structured fields.
	MinFieldConfidence float64 `mapstructure:"min_field_confidence"`

	// Calibration selects the post-fusion confidence adjustment:
	// "none" | "conservative" | "aggressive".
	Calibration string `mapstructure:"calibration"`

	EnablePatternRules   bool `mapstructure:"enable_pattern_rules"`
	EnableSemanticSearch bool `mapstructure:"enable_semantic_search"`

	// MaxConcurrency bounds the number of chunks annotated in parallel for a
	// single document.
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// Config is the root configuration structure for the engine.  Every
// infrastructure component and application service reads its settings from
// the relevant sub-struct.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Milvus    MilvusConfig    `mapstructure:"milvus"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Inference InferenceConfig `mapstructure:"inference"`
	Log       LogConfig       `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required when kafka is enabled")
		}
	}

	if c.Inference.EnableSemanticSearch && c.Milvus.Addr == "" {
		return fmt.Errorf("config: milvus.addr is required when semantic search is enabled")
	}

	switch c.Embedding.Provider {
	case "openai", "none":
	default:
		return fmt.Errorf("config: embedding.provider %q is invalid; expected openai|none", c.Embedding.Provider)
	}
	if c.Embedding.Timeout <= 0 {
		return fmt.Errorf("config: embedding.timeout must be positive, got %s", c.Embedding.Timeout)
	}
	if c.Embedding.CacheSize < 1 {
		return fmt.Errorf("config: embedding.cache_size must be >= 1, got %d", c.Embedding.CacheSize)
	}

	if c.Inference.SemanticThreshold < 0 || c.Inference.SemanticThreshold > 1 {
		return fmt.Errorf("config: inference.semantic_threshold %.2f is out of range [0, 1]", c.Inference.SemanticThreshold)
	}
	if c.Inference.JaccardThreshold < 0 || c.Inference.JaccardThreshold > 1 {
		return fmt.Errorf("config: inference.jaccard_threshold %.2f is out of range [0, 1]", c.Inference.JaccardThreshold)
	}
	if c.Inference.MinConfidenceThreshold < 0 || c.Inference.MinConfidenceThreshold > 1 {
		return fmt.Errorf("config: inference.min_confidence_threshold %.2f is out of range [0, 1]", c.Inference.MinConfidenceThreshold)
	}
	switch c.Inference.Calibration {
	case "none", "conservative", "aggressive":
	default:
		return fmt.Errorf("config: inference.calibration %q is invalid; expected none|conservative|aggressive", c.Inference.Calibration)
	}
	if c.Inference.MaxConcurrency < 1 {
		return fmt.Errorf("config: inference.max_concurrency must be >= 1, got %d", c.Inference.MaxConcurrency)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
