package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds the annotation service's metric vectors.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Inference pipeline
	InferenceRequestsTotal CounterVec
	InferenceDuration      HistogramVec
	ChunksProcessedTotal   CounterVec
	AnnotationsTotal       CounterVec
	SafetyOverridesTotal   CounterVec
	FieldsExtractedTotal   CounterVec
	LearnedRuleCount       GaugeVec

	// Embedding layer
	EmbeddingRequestsTotal CounterVec
	EmbeddingDuration      HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	CacheEvictionsTotal    CounterVec

	// Infrastructure
	EventsPublished CounterVec
}

var (
	DefaultHTTPDurationBuckets      = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultInferenceDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultEmbeddingDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10}
)

// NewAppMetrics registers every metric on the collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	m.InferenceRequestsTotal = collector.RegisterCounter("inference_requests_total", "Inference passes", "status")
	m.InferenceDuration = collector.RegisterHistogram("inference_duration_seconds", "Inference pass duration", DefaultInferenceDurationBuckets, "note_type")
	m.ChunksProcessedTotal = collector.RegisterCounter("chunks_processed_total", "Chunks processed", "chunk_type")
	m.AnnotationsTotal = collector.RegisterCounter("annotations_total", "Annotations produced", "label", "source")
	m.SafetyOverridesTotal = collector.RegisterCounter("safety_overrides_total", "Critical-safety guard overrides", "overridden_source")
	m.FieldsExtractedTotal = collector.RegisterCounter("fields_extracted_total", "Structured fields extracted", "category")
	m.LearnedRuleCount = collector.RegisterGauge("learned_rule_count", "Confirmed rules in the last snapshot", "scope")

	m.EmbeddingRequestsTotal = collector.RegisterCounter("embedding_requests_total", "Embedding provider calls", "status")
	m.EmbeddingDuration = collector.RegisterHistogram("embedding_duration_seconds", "Embedding call duration", DefaultEmbeddingDurationBuckets, "provider")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.CacheEvictionsTotal = collector.RegisterCounter("cache_evictions_total", "Cache evictions", "cache")

	m.EventsPublished = collector.RegisterCounter("events_published_total", "Domain events published", "topic", "status")

	return m
}

// RecordHTTPRequest records one completed request.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordInference records one inference pass and its per-label annotation
// counts keyed by suggestion source.
func RecordInference(m *AppMetrics, noteType string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.InferenceRequestsTotal.WithLabelValues(status).Inc()
	if noteType == "" {
		noteType = "unknown"
	}
	m.InferenceDuration.WithLabelValues(noteType).Observe(duration.Seconds())
}

// RecordAnnotation counts one produced annotation.
func RecordAnnotation(m *AppMetrics, label, source string) {
	if m == nil {
		return
	}
	m.AnnotationsTotal.WithLabelValues(label, source).Inc()
}

// RecordCacheAccess counts a hit or miss on a named cache.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordCacheEviction counts one evicted entry on a named cache.
func RecordCacheEviction(m *AppMetrics, cache string) {
	if m == nil {
		return
	}
	m.CacheEvictionsTotal.WithLabelValues(cache).Inc()
}

// RecordEmbedding records one embedding provider call.
func RecordEmbedding(m *AppMetrics, provider string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.EmbeddingRequestsTotal.WithLabelValues(status).Inc()
	m.EmbeddingDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordChunkProcessed counts one chunk entering the pipeline.
func RecordChunkProcessed(m *AppMetrics, chunkType string) {
	if m == nil {
		return
	}
	m.ChunksProcessedTotal.WithLabelValues(chunkType).Inc()
}

// RecordFieldExtracted counts one structured field.
func RecordFieldExtracted(m *AppMetrics, category string) {
	if m == nil {
		return
	}
	m.FieldsExtractedTotal.WithLabelValues(category).Inc()
}

// RecordSafetyOverride counts one critical-safety override, keyed by the
// source whose decision was overridden.
func RecordSafetyOverride(m *AppMetrics, overriddenSource string) {
	if m == nil {
		return
	}
	m.SafetyOverridesTotal.WithLabelValues(overriddenSource).Inc()
}

// RecordEventPublish counts one publish attempt on a topic.
func RecordEventPublish(m *AppMetrics, topic string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.EventsPublished.WithLabelValues(topic, status).Inc()
}

// SetLearnedRuleCount records the size of the confirmed-rule corpus per
// scope, as of the last index sync.
func SetLearnedRuleCount(m *AppMetrics, scope string, count int) {
	if m == nil {
		return
	}
	m.LearnedRuleCount.WithLabelValues(scope).Set(float64(count))
}
