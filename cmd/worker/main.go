package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sentinel-worker-go/internal/api"
	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/logging"
	"sentinel-worker-go/internal/services"
)

// @title Sentinel Worker API
// @version 1.0.0
// @description Camera surveillance worker: weapon detection, threat scoring and live frame streaming over WebSocket
// @BasePath /
func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	console := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = log.Output(console)

	// Load configuration
	cfg := config.Load()

	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogdyEnabled {
		w, _, err := logging.StartLogdy(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to start Logdy, continuing with console logging")
		} else {
			log.Logger = log.Output(zerolog.MultiLevelWriter(console, w))
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("worker_id", cfg.WorkerID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Ints("camera_ids", cfg.CameraIDs).
		Str("model_path", cfg.ModelPath).
		Bool("alerts_enabled", cfg.NatsURL != "").
		Msg("Starting Sentinel Worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := services.NewServiceContainer(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create services")
	}

	server := api.NewServer(cfg, container)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("Server failed")
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Services did not shut down cleanly")
	} else {
		log.Info().Msg("Shutdown complete")
	}
}
