package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultServerMode, cfg.Server.Mode)
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
	assert.Equal(t, DefaultDBName, cfg.Database.DBName)
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultKafkaTopic, cfg.Kafka.Topic)
	assert.Equal(t, DefaultMilvusAddr, cfg.Milvus.Addr)
	assert.Equal(t, "none", cfg.Embedding.Provider)
	assert.Equal(t, DefaultEmbeddingModel, cfg.Embedding.Model)
	assert.Equal(t, DefaultEmbeddingTimeout, cfg.Embedding.Timeout)
	assert.Equal(t, DefaultEmbeddingCacheSize, cfg.Embedding.CacheSize)
	assert.Equal(t, DefaultSemanticThreshold, cfg.Inference.SemanticThreshold)
	assert.Equal(t, DefaultJaccardThreshold, cfg.Inference.JaccardThreshold)
	assert.Equal(t, DefaultMinConfidenceThreshold, cfg.Inference.MinConfidenceThreshold)
	assert.Equal(t, DefaultCalibration, cfg.Inference.Calibration)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
}

func TestApplyDefaults_ExplicitValuesWin(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Database.DBName = "custom"
	cfg.Inference.SemanticThreshold = 0.9
	cfg.Embedding.Timeout = 2 * time.Second

	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "custom", cfg.Database.DBName)
	assert.Equal(t, 0.9, cfg.Inference.SemanticThreshold)
	assert.Equal(t, 2*time.Second, cfg.Embedding.Timeout)
}

func TestApplyDefaults_NilConfigDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
