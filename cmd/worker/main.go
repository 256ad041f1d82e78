// Package main provides the entry point for the correlation worker service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/remote/internal/config"
	"github.com/thebtf/remote/internal/worker"
)

var Version = "dev"

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Get()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Info().
		Str("version", Version).
		Str("sources_dir", cfg.SourcesDir).
		Msg("Starting correlation worker")

	if cfg.SourcesDir != "" {
		if err := os.MkdirAll(cfg.SourcesDir, 0o750); err != nil {
			log.Fatal().Err(err).Msg("Failed to create sources directory")
		}
	}

	registry, err := config.NewRegistry(cfg.SourcesDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load source configs")
	}

	svc := worker.NewService(Version, cfg, registry)
	if err := svc.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start service")
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Received shutdown signal")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := svc.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}
