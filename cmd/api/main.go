// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/pulsenote/pulsenote/internal/api"
	"github.com/pulsenote/pulsenote/internal/config"
	"github.com/pulsenote/pulsenote/internal/event"
	"github.com/pulsenote/pulsenote/internal/feed"
	"github.com/pulsenote/pulsenote/internal/health"
	"github.com/pulsenote/pulsenote/internal/middleware"
	"github.com/pulsenote/pulsenote/internal/post"
	"github.com/pulsenote/pulsenote/internal/ranking"
	"github.com/pulsenote/pulsenote/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("PulseNote API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	// Tracing
	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "pulsenote-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingProtocol,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: 1.0,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	feedMetrics := feed.NewMetrics()
	eventMetrics := event.NewMetrics()
	for name, reg := range map[string]interface {
		Register(prometheus.Registerer) error
	}{
		"http": httpMetrics, "feed": feedMetrics, "event": eventMetrics,
	} {
		if err := reg.Register(registry); err != nil {
			logger.Error("failed to register metrics", "group", name, "error", err)
			os.Exit(1)
		}
	}

	// Shared redis client when any backend needs it
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" || cfg.SinkBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
	}

	// Feed cache backend
	var cache feed.Cache
	var cacheChecker api.HealthChecker
	switch cfg.CacheBackend {
	case "redis":
		cache = feed.NewRedisCache(redisClient, logger)
		cacheChecker = health.NewRedisChecker(redisClient)
	default:
		cache = feed.NewMemoryCache()
	}

	// Event sink backend
	var sink event.Sink
	var sinkChecker api.HealthChecker
	switch cfg.SinkBackend {
	case "postgres":
		db, err := event.OpenPostgres(context.Background(), cfg.PostgresDSN)
		if err != nil {
			logger.Error("failed to open postgres sink", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		sink = event.NewPostgresSink(db)
		sinkChecker = health.NewPostgresChecker(db)
	case "redis":
		sink = event.NewRedisStreamSink(redisClient, cfg.EventStreamKey)
		sinkChecker = health.NewRedisChecker(redisClient)
	default:
		sink = event.NewLogSink(logger)
	}

	dispatcher := event.NewDispatcher(sink, event.DispatcherConfig{
		QueueSize:      cfg.DispatchQueueSize,
		Workers:        cfg.DispatchWorkers,
		PersistTimeout: 5 * time.Second,
	}, logger, eventMetrics)

	// Ranking weights, optionally calibrated from file.
	// Calibration errors fall back to defaults and are logged inside LoadCalibration.
	weights, _ := ranking.LoadCalibration(cfg.CalibrationPath)

	repo := post.NewInMemoryRepository()
	engine := feed.NewEngine(feed.Config{
		MaxFeedSize:       cfg.MaxFeedSize,
		CacheTTL:          time.Duration(cfg.CacheTTLSeconds) * time.Second,
		HistoryMaxPerUser: cfg.HistoryMaxPerUser,
	}, weights, cache, dispatcher, logger, feedMetrics)

	mux := api.NewRouter(api.RouterConfig{
		Events: api.NewEventHandlers(engine, repo),
		Feeds:  api.NewFeedHandlers(engine, repo),
		Posts:  api.NewPostHandlers(engine, repo),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			CacheChecker: cacheChecker,
			SinkChecker:  sinkChecker,
		}),
		Gatherer: registry,
	})

	// Apply middleware: RequestID -> Tracing -> Logging -> HTTPMetrics
	handler := middleware.RequestID(
		middleware.Tracing("pulsenote-api")(
			middleware.Logging(logger)(
				middleware.HTTPMetrics(httpMetrics)(mux))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Drain pending events, then flush spans.
	dispatcher.Close()
	if err := tp.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down tracer provider", "error", err)
	}

	logger.Info("server stopped")
}
