package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"drive-service/internal/app"
	"drive-service/internal/config"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	envFilePath      = ".env"
	signalBufferSize = 1
)

var shutdownSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "drive").Logger()

	if err := godotenv.Load(envFilePath); err != nil {
		logger.Info().Msg(".env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Fatal().Err(err).Str("level", cfg.Log.Level).Msg("invalid log level")
	}
	logger = logger.Level(level)

	service, err := app.NewService(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize service")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- service.Start()
	}()

	quit := make(chan os.Signal, signalBufferSize)
	signal.Notify(quit, shutdownSignals...)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
		}
	}

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := service.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("forced shutdown")
	}

	logger.Info().Msg("service exited gracefully")
}
