package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"carlog/internal/app"
	"carlog/internal/backend"
	"carlog/internal/cache"
	"carlog/internal/cli"
	apphttp "carlog/internal/http"
	applog "carlog/internal/log"
	appmetrics "carlog/internal/metrics"
)

// pinger is implemented by stores that can check their connection.
type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Slog()).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	metrics := appmetrics.New()
	state := app.New(app.Config{
		Store:     res.Store,
		StoreName: res.Type.String(),
		Fuel:      cfg.FuelOptions(),
		Notifier:  res.Notifier,
		Metrics:   metrics,
		Logger:    logger.Slog(),
	})
	// A failed load leaves an empty set; the dashboard shows the error.
	if err := state.Reload(context.Background()); err != nil {
		logger.Error("Initial load failed", applog.FieldError, err)
	}

	opts := apphttp.Options{Metrics: metrics, Logger: logger}
	if p, ok := res.Store.(pinger); ok {
		opts.Ready = p.Ping
	}
	srv := apphttp.NewServer(":"+cfg.Port, state, opts)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	caches := cache.NewManager(logger.Slog())
	for _, c := range res.Caches {
		caches.Register(c)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})
	caches.StartCleanup(ctx, 10*time.Minute)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting carlog server", "port", cfg.Port, "backend", res.Type.String())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// SIGHUP reloads the record set from the store
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				if err := state.Reload(gctx); err != nil {
					logger.Error("Reload failed", applog.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	<-done
	logger.Info("Server stopped gracefully")
}
