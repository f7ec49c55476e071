// Package http is the gin-based HTTP interface: router, middleware wiring,
// and server lifecycle. Handlers are thin adapters over the application
// service.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/prometheus"
	"github.com/nasher721/note-clarity-sub000/internal/interfaces/http/handlers"
	"github.com/nasher721/note-clarity-sub000/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies required
// to construct the complete route tree. Nil fields disable the piece they
// configure.
type RouterConfig struct {
	// Handlers
	AnnotateHandler *handlers.AnnotateHandler
	HealthHandler   *handlers.HealthHandler

	// Middleware
	CORS      *middleware.CORSConfig
	RateLimit middleware.RateLimiter
	Logging   *middleware.LoggingConfig

	// Infrastructure
	Logger    logging.Logger
	Metrics   *prometheus.AppMetrics
	Collector prometheus.MetricsCollector

	// Mode is the gin mode: "debug", "release", or "test".
	Mode string
}

// NewRouter constructs the complete route tree: global middleware, public
// health and metrics endpoints, and the /api/v1 group.
func NewRouter(cfg RouterConfig) http.Handler {
	switch cfg.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())

	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.Logger != nil {
		logCfg := middleware.DefaultLoggingConfig()
		if cfg.Logging != nil {
			logCfg = *cfg.Logging
		}
		r.Use(middleware.RequestLogging(cfg.Logger, logCfg))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimit != nil {
		r.Use(middleware.RateLimit(cfg.RateLimit, middleware.DefaultRateLimitConfig()))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.Collector != nil {
		r.GET("/metrics", gin.WrapH(cfg.Collector.Handler()))
	}

	api := r.Group("/api/v1")
	if h := cfg.AnnotateHandler; h != nil {
		api.POST("/annotate", h.Annotate)
		api.POST("/annotations/:id/confirm", h.Confirm)
		api.POST("/rules/index/sync", h.SyncIndex)
	}

	return r
}
