package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cafesight/cafesight/internal/aggregate"
	"github.com/cafesight/cafesight/internal/config"
	"github.com/cafesight/cafesight/internal/ingest"
	"github.com/cafesight/cafesight/internal/mining"
	"github.com/cafesight/cafesight/internal/server"
	"github.com/cafesight/cafesight/internal/storage"
	"github.com/cafesight/cafesight/internal/stream"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/worker.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}

	log.Info().
		Str("stream_backend", cfg.Stream.Backend).
		Str("clickhouse_addr", cfg.ClickHouse.Addr).
		Int("batch_count", cfg.Stream.BatchCount).
		Int("aggregation_hour", *cfg.Aggregation.Hour).
		Msg("Configuration loaded")

	// Initialize ClickHouse
	ch, err := storage.New(cfg.ClickHouse)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to ClickHouse")
	}
	defer ch.Close()

	if err := ch.EnsureTables(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to create tables")
	}
	log.Info().Msg("Connected to ClickHouse")

	// Initialize stream consumer
	consumer, err := stream.New(cfg.Stream)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create stream consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ingestion loop
	ingester := ingest.New(consumer, ch)
	go ingester.Run(ctx)

	// Aggregation engine + golden path mining on a daily schedule
	engine := aggregate.NewEngine(ch, cfg.Aggregation.BestSellerTopN)
	runner := mining.NewRunner(ch, cfg.Mining)

	job := func(ctx context.Context) {
		engine.TryRunAll(ctx)
		runner.TryRunAll(ctx)
	}
	scheduler := aggregate.NewScheduler(*cfg.Aggregation.Hour, job)
	go scheduler.Run(ctx)

	if cfg.Aggregation.RunOnStart {
		go job(ctx)
	}

	// Admin server
	admin := server.NewAdmin(cfg.Server.Addr, ctx, engine.TryStart, runner.TryStart)
	go func() {
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Admin server failed")
		}
	}()

	log.Info().Msg("Worker started")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Admin server shutdown failed")
	}

	if err := consumer.Close(); err != nil {
		log.Error().Err(err).Msg("Closing stream consumer failed")
	}

	log.Info().Msg("Shutdown complete")
}
