package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8088
  mode: "test"
database:
  host: "db.internal"
  port: 5432
  user: "clarity"
  password: "secret"
  db_name: "noteclarity"
inference:
  semantic_threshold: 0.8
  calibration: "conservative"
  enable_pattern_rules: true
log:
  level: "debug"
  format: "console"
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Mode)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "clarity", cfg.Database.User)
	assert.Equal(t, 0.8, cfg.Inference.SemanticThreshold)
	assert.Equal(t, "conservative", cfg.Inference.Calibration)
	assert.True(t, cfg.Inference.EnablePatternRules)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_DefaultsFillUnsetFields(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Fields absent from the YAML get engine defaults.
	assert.Equal(t, DefaultJaccardThreshold, cfg.Inference.JaccardThreshold)
	assert.Equal(t, DefaultMinConfidenceThreshold, cfg.Inference.MinConfidenceThreshold)
	assert.Equal(t, DefaultEmbeddingCacheSize, cfg.Embedding.CacheSize)
	assert.Equal(t, DefaultKafkaTopic, cfg.Kafka.Topic)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "inference: [broken")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := createTempConfigFile(t, `
inference:
  calibration: "wild"
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "calibration")
}

func TestLoadFromEnv_DefaultsOnly(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultSemanticThreshold, cfg.Inference.SemanticThreshold)
	assert.True(t, cfg.Inference.EnablePatternRules)
	assert.False(t, cfg.Inference.EnableSemanticSearch)
}

func TestWatch_FiresOnRewrite(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	got := make(chan *Config, 1)
	Watch(path, func(cfg *Config) {
		select {
		case got <- cfg:
		default:
		}
	})

	updated := strings.Replace(validConfigYAML, `level: "debug"`, `level: "warn"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-got:
		assert.Equal(t, "warn", cfg.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("watch callback never fired")
	}
}

func TestMustLoad_PanicsOnMissingFile(t *testing.T) {
	assert.Panics(t, func() { MustLoad("nonexistent/config.yaml") })
}
