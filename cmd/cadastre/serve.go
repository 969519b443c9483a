package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/cadastre-extract-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/cadastre-extract-service/internal/adapter/kafka"
	"github.com/couchcryptid/cadastre-extract-service/internal/config"
	"github.com/couchcryptid/cadastre-extract-service/internal/coordinator"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
)

const sinkBuffer = 256

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return serve(cmd.Context(), cfg, observability.NewLogger(cfg.LogLevel, cfg.LogFormat))
	},
}

func serve(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()

	// Optional Kafka forwarding of session outcome events.
	var sink coordinator.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		bus := coordinator.NewBus()
		events, unsubscribe := bus.Subscribe(sinkBuffer)
		defer unsubscribe()
		writer = kafkaadapter.NewWriter(cfg, d.metrics, logger)
		go writer.Forward(ctx, events)
		sink = bus
		logger.Info("kafka event forwarding enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventsTopic)
	} else {
		logger.Info("kafka event forwarding disabled")
	}

	sessions := coordinator.NewRegistry(coordinator.RegistryConfig{
		Resolver:         d.resolver,
		Searcher:         d.geocoder,
		Composer:         d.composer,
		SnapshotMaxBytes: cfg.SnapshotMaxBytes,
		SnapshotScale:    cfg.SnapshotScale,
		Debounce:         cfg.SearchDebounce,
		TTL:              cfg.SessionTTL,
		Sink:             sink,
		Metrics:          d.metrics,
		Logger:           logger,
	})
	go sessions.Run(ctx)

	srv := httpadapter.NewServer(cfg.HTTPAddr, sessions, d.geocoder, cfg.SnapshotMaxBytes, readiness(d), logger)
	// Closing sessions ends open event streams so Shutdown can drain them.
	srv.RegisterOnShutdown(sessions.Close)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	logger.Info("service started", "backend", d.resolver.Backend(), "debounce", cfg.SearchDebounce)
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// readiness fails while a configured Redis cache is unreachable.
func readiness(d *deps) httpadapter.ReadinessFunc {
	return func(ctx context.Context) error {
		if d.redis == nil {
			return nil
		}
		if err := d.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}
}
