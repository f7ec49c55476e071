// API server entry point: wires configuration, storage, messaging, the
// inference engine, and the HTTP interface together.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	app "github.com/nasher721/note-clarity-sub000/internal/application/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/config"
	domain "github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/inference"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/database/postgres"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/database/postgres/repositories"
	redisclient "github.com/nasher721/note-clarity-sub000/internal/infrastructure/database/redis"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/embedding"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/messaging/kafka"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/prometheus"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/search/milvus"
	httpserver "github.com/nasher721/note-clarity-sub000/internal/interfaces/http"
	"github.com/nasher721/note-clarity-sub000/internal/interfaces/http/handlers"
	"github.com/nasher721/note-clarity-sub000/internal/interfaces/http/middleware"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

// version is injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	migrateOnly := flag.Bool("migrate-only", false, "apply database migrations and exit")
	flag.Parse()

	if err := run(*configPath, *migrateOnly); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, migrateOnly bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	logger.Info("starting note-clarity api server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database and migrations.
	migrator, err := postgres.NewMigrator(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	migrator.Close()
	if migrateOnly {
		logger.Info("migrations applied, exiting")
		return nil
	}

	conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer conn.Close()

	annotationRepo := repositories.NewAnnotationRepository(conn.Pool(), logger)
	patternRepo := repositories.NewPatternRuleRepository(conn.Pool(), logger)

	checkers := []handlers.HealthChecker{
		namedChecker{"postgres", conn.HealthCheck},
	}

	// Optional Redis shared embedding cache.
	var shared embedding.SharedCache
	if cfg.Redis.Enabled {
		rdb, err := redisclient.NewClient(cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		shared = rdb
		checkers = append(checkers, namedChecker{"redis", rdb.Ping})
	}

	// Metrics.
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "noteclarity",
		Subsystem:            "api",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	metrics := prometheus.NewAppMetrics(collector)

	// Embedding provider behind the coalescing cache.
	var provider inference.EmbeddingProvider
	if cfg.Embedding.Provider == "openai" {
		provider = embedding.NewVectorCache(
			embedding.NewOpenAIProvider(cfg.Embedding, logger).WithMetrics(metrics),
			shared,
			cfg.Embedding.CacheSize,
			logger,
		).WithMetrics(metrics)
	}

	// Engine.
	engineCfg := inference.ConfigFromSettings(cfg.Inference, cfg.Embedding.Timeout)
	engine := inference.NewEngine(annotationRepo, patternRepo, provider, engineCfg, logger)

	// Hot reload of safe settings when running from a config file.
	if configPath != "" {
		config.Watch(configPath, func(next *config.Config) {
			if ls, ok := logger.(logging.LevelSetter); ok {
				ls.SetLevel(next.Log.Level)
			}
			engine.SetCalibration(notetypes.CalibrationMode(next.Inference.Calibration))
			logger.Info("configuration reloaded",
				logging.String("log_level", next.Log.Level),
				logging.String("calibration", next.Inference.Calibration))
		})
	}

	serviceOpts := []app.Option{app.WithMetrics(metrics)}

	// Optional Milvus vector index for the semantic tier.
	if cfg.Inference.EnableSemanticSearch && provider != nil && cfg.Milvus.Addr != "" {
		mc, err := milvus.NewClient(ctx, cfg.Milvus, logger)
		if err != nil {
			logger.Warn("milvus unavailable, semantic tier stays in-process", logging.Err(err))
		} else {
			defer mc.Close()
			index := milvus.NewRuleIndex(mc, cfg.Milvus, logger)
			engine = engine.WithRuleSearcher(index, cfg.Milvus.DefaultTopK)
			serviceOpts = append(serviceOpts, app.WithRuleIndex(index, provider))
			checkers = append(checkers, namedChecker{"milvus", mc.HealthCheck})
		}
	}

	// Optional Kafka event producer.
	var publisher domain.EventPublisher = kafka.NopPublisher{}
	if cfg.Kafka.Enabled {
		if tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger); err != nil {
			logger.Warn("kafka topic manager unavailable", logging.Err(err))
		} else {
			if err := tm.EnsureTopic(cfg.Kafka.Topic, 0, 0); err != nil {
				logger.Warn("topic creation failed", logging.Err(err))
			}
			tm.Close()
		}

		producer, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		defer producer.Close()
		publisher = producer.WithAppMetrics(metrics)
	}

	svc := app.NewService(engine, annotationRepo, annotationRepo, publisher, logger, serviceOpts...)

	// HTTP interface.
	corsCfg := middleware.DefaultCORSConfig()
	router := httpserver.NewRouter(httpserver.RouterConfig{
		AnnotateHandler: handlers.NewAnnotateHandler(svc, logger),
		HealthHandler:   handlers.NewHealthHandler(version, checkers...),
		CORS:            &corsCfg,
		Logger:          logger,
		Metrics:         metrics,
		Collector:       collector,
		Mode:            cfg.Server.Mode,
	})

	srv := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return srv.Stop(context.Background())
}

// loadConfig prefers an explicit file and falls back to NOTECLARITY_*
// environment variables.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

// namedChecker adapts an infrastructure health probe to the handler's
// HealthChecker interface.
type namedChecker struct {
	name  string
	check func(ctx context.Context) error
}

func (c namedChecker) Name() string { return c.name }

func (c namedChecker) Check(ctx context.Context) error { return c.check(ctx) }
