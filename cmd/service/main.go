// Package main is the entry point for the quote-sync service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http"
	"github.com/jsamuelsen/quote-sync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-sync/internal/bootstrap"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
	"github.com/jsamuelsen/quote-sync/internal/platform/scheduler"
	"github.com/jsamuelsen/quote-sync/internal/platform/telemetry"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Load and validate configuration (fail fast)
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 2. Logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	slog.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 3. Telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 4. Storage, quote source and services
	components, err := bootstrap.New(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("bootstrapping: %w", err)
	}

	defer func() {
		if closeErr := components.Close(); closeErr != nil {
			logger.Error("storage close error", slog.Any("error", closeErr))
		}
	}()

	// 5. HTTP server
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	server := http.New(&cfg.Server, logger)

	http.SetupRouter(server.Engine(), http.NewDefaultRouterConfig(
		logger,
		&cfg.App,
		handlers.NewHealthHandler(components.Health, buildInfo, prometheus.DefaultGatherer),
		handlers.NewQuoteHandler(components.Quotes),
		handlers.NewSyncHandler(components.Sync),
	))

	// 6. Periodic sync
	var poller *scheduler.Poller
	if cfg.Sync.Enabled {
		poller = scheduler.New(scheduler.Config{
			Name:     "quote-sync",
			Interval: cfg.Sync.Interval,
			Job:      components.Sync.Run,
			Logger:   logger,
		})

		if err := poller.Start(ctx); err != nil {
			return fmt.Errorf("starting sync poller: %w", err)
		}
	} else {
		logger.Info("periodic sync disabled")
	}

	serverErr, err := server.Start()
	if err != nil {
		if poller != nil {
			_ = poller.Stop(ctx)
		}

		return fmt.Errorf("starting HTTP server: %w", err)
	}

	return waitForShutdown(ctx, logger, server, poller, serverErr, cfg.Server.ShutdownTimeout)
}

// waitForShutdown blocks until a shutdown signal or a server error, then
// drains HTTP requests and stops the poller.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	poller *scheduler.Poller,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error

	select {
	case err, ok := <-serverErr:
		if ok && err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("server shutdown: %w", err))
	}

	if poller != nil {
		if err := poller.Stop(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("poller shutdown: %w", err))
		}
	}

	logger.Info("shutdown complete")

	return runErr
}
