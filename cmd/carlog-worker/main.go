package main

import (
	"context"
	"errors"
	"os"
	"time"

	"carlog/internal/amqp"
	"carlog/internal/backend"
	"carlog/internal/cache"
	"carlog/internal/cli"
	applog "carlog/internal/log"
	"carlog/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	logger.Info("Starting carlog-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the mirror worker")
		os.Exit(1)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	// The worker consumes commit events; it never publishes them.
	factory := backend.NewFactory(logger.Slog())
	factory.PublishCommits = false

	ctx := context.Background()
	primary, err := factory.CreateBackend(ctx, bcfg.WithType(backend.SQLiteBackend))
	if err != nil {
		logger.Error("Failed to initialize primary store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer primary.Close()

	mirrorRes, err := factory.CreateBackend(ctx, bcfg.WithType(backend.SheetsBackend))
	if err != nil {
		logger.Error("Failed to initialize mirror store", applog.FieldError, err)
		os.Exit(1)
	}
	defer mirrorRes.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	caches := cache.NewManager(logger.Slog())
	for _, c := range mirrorRes.Caches {
		caches.Register(c)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		caches.Stop()
	})
	caches.StartCleanup(ctx, 10*time.Minute)

	mirror := worker.NewMirror(primary.Store, mirrorRes.Store)

	// Commits made while the worker was down are covered by one full pass.
	if err := mirror.Startup(ctx); err != nil {
		logger.Error("Startup mirror pass failed", applog.FieldError, err)
	}

	logger.Info("Consuming commit events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	if err := client.ConsumeRecordsCommitted(ctx, mirror.HandleCommitted); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped", "mirror_passes", mirror.Passes())
}
