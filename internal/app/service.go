package app

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"drive-service/internal/audit"
	"drive-service/internal/config"
	"drive-service/internal/http"
	"drive-service/internal/worker"

	"github.com/rs/zerolog"
)

const serverAddrPrefix = ":"

// Service owns the HTTP server, the maintenance worker and the connections they share.
type Service struct {
	config  *config.Config
	log     zerolog.Logger
	server  *http.Server
	worker  *worker.Maintenance
	audit   *audit.Recorder
	closers []io.Closer

	stopWorker context.CancelFunc
	workerDone <-chan struct{}
}

// NewService creates and initializes a new Service instance
// This is a convenience wrapper around InitializeService
func NewService(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	return InitializeService(ctx, cfg, logger)
}

// Start launches the maintenance worker and blocks serving HTTP until Shutdown.
func (s *Service) Start() error {
	workerCtx, cancel := context.WithCancel(context.Background())
	s.stopWorker = cancel
	s.workerDone = s.worker.Start(workerCtx)

	s.log.Info().Str("port", s.config.Server.Port).Msg("starting HTTP server")
	if err := s.server.Start(serverAddrPrefix + s.config.Server.Port); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for the worker's current pass and closes connections.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)

	if s.stopWorker != nil {
		s.stopWorker()
		select {
		case <-s.workerDone:
		case <-ctx.Done():
			s.log.Warn().Msg("maintenance worker did not stop before shutdown deadline")
		}
	}

	if ferr := s.audit.Flush(ctx); ferr != nil {
		s.log.Warn().Err(ferr).Msg("pending audit events dropped at shutdown")
	}

	for _, c := range s.closers {
		if cerr := c.Close(); cerr != nil {
			s.log.Error().Err(cerr).Msg("failed to close resource")
		}
	}
	return err
}
