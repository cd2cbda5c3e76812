package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/regenagro/enviro-data-batch/internal/adapter/httpadapter"
	kafkaadapter "github.com/regenagro/enviro-data-batch/internal/adapter/kafka"
	"github.com/regenagro/enviro-data-batch/internal/adapter/nasapower"
	"github.com/regenagro/enviro-data-batch/internal/adapter/nominatim"
	"github.com/regenagro/enviro-data-batch/internal/adapter/openmeteo"
	"github.com/regenagro/enviro-data-batch/internal/adapter/postgres"
	"github.com/regenagro/enviro-data-batch/internal/config"
	"github.com/regenagro/enviro-data-batch/internal/observability"
	"github.com/regenagro/enviro-data-batch/internal/pipeline"
	"github.com/regenagro/enviro-data-batch/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.PostgresDSN, metrics, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	geocodeClient := nominatim.NewClient(cfg.GeocoderUserAgent, cfg.ProviderTimeout, metrics, logger)
	geocoder := nominatim.NewCachedGeocoder(geocodeClient, cfg.GeocodeCacheSize, metrics)

	weather := openmeteo.NewClient(cfg.ProviderTimeout, metrics, logger)
	solar := nasapower.NewClient(cfg.ProviderTimeout, metrics, logger)

	// Event publishing is feature-flagged via KAFKA_BROKERS / KAFKA_ENABLED.
	var publisher pipeline.EventPublisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, metrics, logger)
		publisher = kafkaPublisher
		logger.Info("kafka event publishing enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka event publishing disabled")
	}

	p := pipeline.New(
		store,
		geocoder,
		weather,
		solar,
		store,
		publisher,
		logger,
		metrics,
		cfg.WindowMonths,
		cfg.RunTimeout,
	)

	sched := scheduler.New(p, cfg.RunInterval, cfg.RunTimeout, logger)
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
