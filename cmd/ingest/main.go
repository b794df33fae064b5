// Package main is the entry point for the firehose ingest worker.
// It consumes engagement events over WebSocket and forwards them to the
// ranking engine and event sink.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pulsenote/pulsenote/internal/config"
	"github.com/pulsenote/pulsenote/internal/event"
	"github.com/pulsenote/pulsenote/internal/feed"
	"github.com/pulsenote/pulsenote/internal/ingest"
	"github.com/pulsenote/pulsenote/internal/middleware"
	"github.com/pulsenote/pulsenote/internal/post"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	metricsAddr := flag.String("metrics-addr", ":9102", "address for the metrics endpoint")
	flag.Parse()

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}
	if cfg.IngestURL == "" {
		fmt.Fprintln(os.Stderr, "config error: INGEST_URL is required for the ingest worker")
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	ingestMetrics := ingest.NewMetrics()
	eventMetrics := event.NewMetrics()
	if err := ingestMetrics.Register(registry); err != nil {
		logger.Error("failed to register ingest metrics", "error", err)
		os.Exit(1)
	}
	if err := eventMetrics.Register(registry); err != nil {
		logger.Error("failed to register event metrics", "error", err)
		os.Exit(1)
	}

	// Event sink backend
	var sink event.Sink
	switch cfg.SinkBackend {
	case "postgres":
		db, err := event.OpenPostgres(context.Background(), cfg.PostgresDSN)
		if err != nil {
			logger.Error("failed to open postgres sink", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		sink = event.NewPostgresSink(db)
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		sink = event.NewRedisStreamSink(redisClient, cfg.EventStreamKey)
	default:
		sink = event.NewLogSink(logger)
	}

	dispatcher := event.NewDispatcher(sink, event.DispatcherConfig{
		QueueSize:      cfg.DispatchQueueSize,
		Workers:        cfg.DispatchWorkers,
		PersistTimeout: 5 * time.Second,
	}, logger, eventMetrics)

	repo := post.NewInMemoryRepository()
	engine := feed.NewEngine(feed.Config{
		HistoryMaxPerUser: cfg.HistoryMaxPerUser,
	}, nil, nil, dispatcher, logger, nil)

	handler := ingest.NewHandler(engine, repo, ingestMetrics, logger)

	client, err := ingest.NewClient(ingest.DefaultConfig(cfg.IngestURL), handler.Handle, logger)
	if err != nil {
		logger.Error("failed to create firehose client", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	metricsServer := &http.Server{
		Addr:    *metricsAddr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		logger.Info("starting metrics endpoint", "addr", *metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting firehose ingest", "url", cfg.IngestURL)
	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("firehose client error", "error", err)
	}

	logger.Info("shutting down ingest worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server forced to shutdown", "error", err)
	}

	// Drain pending events before exit
	dispatcher.Close()
	logger.Info("ingest worker stopped")
}
