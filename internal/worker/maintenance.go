// Package worker runs the periodic maintenance jobs: expired trash purge, share code sweep, object
// cleanup retries and URL cache eviction. Every job is safe to run again after a partial failure.
package worker

import (
	"context"
	"time"

	"drive-service/internal/cleanup"
	"drive-service/internal/trash"

	"github.com/rs/zerolog"
)

type TrashPurger interface {
	PurgeExpired(ctx context.Context, limit int) (trash.PurgeResult, error)
}

type ShareSweeper interface {
	SweepExpired(ctx context.Context, limit int) (int64, error)
}

type CleanupDrainer interface {
	Drain(ctx context.Context, limit int) (cleanup.Result, error)
}

type CacheEvicter interface {
	Clear(ctx context.Context) error
}

type Stats interface {
	RecordMaintenance(purgedEntries int, freedBytes, sweptCodes int64, deletedObjects, failedObjects int)
}

// Maintenance owns the background loop. Cache and stats may be nil.
type Maintenance struct {
	trash     TrashPurger
	shares    ShareSweeper
	cleanup   CleanupDrainer
	cache     CacheEvicter
	stats     Stats
	interval  time.Duration
	batchSize int
	log       zerolog.Logger
}

func NewMaintenance(
	purger TrashPurger,
	sweeper ShareSweeper,
	drainer CleanupDrainer,
	cache CacheEvicter,
	stats Stats,
	interval time.Duration,
	batchSize int,
	logger zerolog.Logger,
) *Maintenance {
	return &Maintenance{
		trash:     purger,
		shares:    sweeper,
		cleanup:   drainer,
		cache:     cache,
		stats:     stats,
		interval:  interval,
		batchSize: batchSize,
		log:       logger.With().Str("component", "worker").Logger(),
	}
}

// Start runs RunOnce every interval until ctx is cancelled. The returned channel closes when the loop exits.
func (m *Maintenance) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.log.Info().Dur("interval", m.interval).Msg("maintenance worker started")
		for {
			select {
			case <-ctx.Done():
				m.log.Info().Msg("maintenance worker stopped")
				return
			case <-time.After(m.interval):
				m.RunOnce(ctx)
			}
		}
	}()
	return done
}

// RunOnce performs one pass of every job. A failing job is logged and does not stop the others.
func (m *Maintenance) RunOnce(ctx context.Context) {
	purged, err := m.trash.PurgeExpired(ctx, m.batchSize)
	if err != nil {
		m.log.Error().Err(err).Msg("purge expired trash")
	}
	if purged.Entries > 0 {
		m.log.Info().Int("entries", purged.Entries).Int64("freed_bytes", purged.FreedBytes).Msg("purged expired trash")
	}

	swept, err := m.shares.SweepExpired(ctx, m.batchSize)
	if err != nil {
		m.log.Error().Err(err).Msg("sweep expired share codes")
	}
	if swept > 0 {
		m.log.Info().Int64("codes", swept).Msg("swept expired share codes")
	}

	drained, err := m.cleanup.Drain(ctx, m.batchSize)
	if err != nil {
		m.log.Error().Err(err).Msg("drain object cleanup queue")
	}
	if drained.Deleted > 0 || drained.Failed > 0 {
		m.log.Info().Int("deleted", drained.Deleted).Int("failed", drained.Failed).Msg("drained object cleanup queue")
	}

	if m.cache != nil {
		if err := m.cache.Clear(ctx); err != nil {
			m.log.Error().Err(err).Msg("evict expired cached urls")
		}
	}

	if m.stats != nil {
		m.stats.RecordMaintenance(purged.Entries, purged.FreedBytes, swept, drained.Deleted, drained.Failed)
	}
}
