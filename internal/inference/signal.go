// Package inference implements the multi-tier annotation decision pipeline:
// learned-rule matching, pattern-rule matching, duplicate adaptation,
// heuristic classification, signal fusion with calibration, the critical
// safety guard, and structured field extraction, tied together by the
// document-level engine.
package inference

import (
	"context"
	"time"

	"github.com/nasher721/note-clarity-sub000/internal/config"
	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

// Signal is one classifier's independent guess for a chunk prior to fusion.
type Signal struct {
	Label            notetypes.Label
	Confidence       float64
	Reason           string
	Source           notetypes.SignalSource
	RemoveReason     notetypes.RemoveReason
	CondenseStrategy notetypes.CondenseStrategy
}

// MatchResult is the outcome of a matcher stage or of signal fusion.  The
// engine converts an accepted MatchResult into an Annotation plus a
// ModelExplanation.
type MatchResult struct {
	Label            notetypes.Label
	Confidence       float64
	RemoveReason     notetypes.RemoveReason
	CondenseStrategy notetypes.CondenseStrategy
	Source           notetypes.SignalSource
	Reason           string
	Signals          []string
}

// Matcher is one stage of the per-chunk decision chain.  TryMatch returns
// (nil, nil) when the stage has no opinion; stage-internal failures are
// degraded to "no match" rather than surfaced, so a returned error always
// means the whole chunk must be skipped.
type Matcher interface {
	Name() string
	TryMatch(ctx context.Context, chunk *annotation.Chunk, ictx *annotation.InferenceContext) (*MatchResult, error)
}

// EmbeddingProvider is the engine's view of the external embedding service.
// Implementations live in internal/infrastructure/embedding.
type EmbeddingProvider interface {
	// Embed returns one vector per input text, preserving order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config carries the decision-pipeline thresholds.  Zero values are replaced
// by DefaultConfig values at engine construction.
type Config struct {
	SemanticThreshold      float64
	JaccardThreshold       float64
	MinConfidenceThreshold float64
	MinFieldConfidence     float64
	Calibration            notetypes.CalibrationMode
	EnablePatternRules     bool
	EnableSemanticSearch   bool
	MaxConcurrency         int
	EmbeddingTimeout       time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		SemanticThreshold:      0.75,
		JaccardThreshold:       0.5,
		MinConfidenceThreshold: 0.6,
		MinFieldConfidence:     0.5,
		Calibration:            notetypes.CalibrationNone,
		EnablePatternRules:     true,
		EnableSemanticSearch:   true,
		MaxConcurrency:         8,
		EmbeddingTimeout:       5 * time.Second,
	}
}

// ConfigFromSettings maps the application-level inference settings onto the
// engine Config. The embedding timeout comes from the embedding section.
func ConfigFromSettings(inf config.InferenceConfig, embeddingTimeout time.Duration) Config {
	return Config{
		SemanticThreshold:      inf.SemanticThreshold,
		JaccardThreshold:       inf.JaccardThreshold,
		MinConfidenceThreshold: inf.MinConfidenceThreshold,
		MinFieldConfidence:     inf.MinFieldConfidence,
		Calibration:            notetypes.CalibrationMode(inf.Calibration),
		EnablePatternRules:     inf.EnablePatternRules,
		EnableSemanticSearch:   inf.EnableSemanticSearch,
		MaxConcurrency:         inf.MaxConcurrency,
		EmbeddingTimeout:       embeddingTimeout,
	}
}

// normalized returns a copy of c with zero values replaced by defaults.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.SemanticThreshold <= 0 {
		c.SemanticThreshold = def.SemanticThreshold
	}
	if c.JaccardThreshold <= 0 {
		c.JaccardThreshold = def.JaccardThreshold
	}
	if c.MinConfidenceThreshold <= 0 {
		c.MinConfidenceThreshold = def.MinConfidenceThreshold
	}
	if c.MinFieldConfidence <= 0 {
		c.MinFieldConfidence = def.MinFieldConfidence
	}
	if c.Calibration == "" {
		c.Calibration = def.Calibration
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = def.MaxConcurrency
	}
	if c.EmbeddingTimeout <= 0 {
		c.EmbeddingTimeout = def.EmbeddingTimeout
	}
	return c
}

// clamp01 clamps v to the closed interval [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
