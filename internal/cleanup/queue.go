// Package cleanup deletes object-storage keys that no entry references any more.
//
// Keys are scheduled in the same transaction that drops their last reference, so an obligation is never
// lost and an object is never deleted for a removal that rolled back. Deletion itself happens after
// commit and is retried with backoff until it succeeds. A job is always leased to one processor:
// Schedule leases new jobs to the caller's Process, Drain leases the due jobs it picks.
package cleanup

import (
	"context"
	"time"

	"drive-service/internal/domain/orphan"
	"drive-service/internal/repository"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	claimLease   = 5 * time.Minute
	baseBackoff  = 30 * time.Second
	maxBackoff   = time.Hour
	maxErrLength = 512
)

// ObjectDeleter is the part of the object store the queue needs.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, objectKey string) error
}

// Result summarizes one processing pass.
type Result struct {
	Deleted int
	Failed  int
}

type Queue struct {
	txm     repository.TxManager
	objects ObjectDeleter
	now     func() time.Time
	log     zerolog.Logger
}

// NewQueue creates a new cleanup queue
func NewQueue(txm repository.TxManager, objects ObjectDeleter, logger zerolog.Logger) *Queue {
	return &Queue{
		txm:     txm,
		objects: objects,
		now:     time.Now,
		log:     logger.With().Str("component", "cleanup").Logger(),
	}
}

// WithClock replaces the time source, for tests.
func (q *Queue) WithClock(now func() time.Time) *Queue {
	q.now = now
	return q
}

// Schedule records keys for deletion inside tx and returns the job ids to pass to Process once tx commits.
// Drain leaves them alone until the lease runs out, so a caller that dies before Process only delays them.
func (q *Queue) Schedule(ctx context.Context, tx repository.Tx, keys []string, reason orphan.Reason) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(keys))
	now := q.now().UTC()
	for _, key := range keys {
		if key == "" {
			continue
		}
		o := &orphan.Object{
			ID:            uuid.New(),
			StorageKey:    key,
			Reason:        reason,
			CreatedAt:     now,
			NextAttemptAt: now.Add(claimLease),
		}
		if err := tx.Orphans().Enqueue(ctx, o); err != nil {
			return nil, err
		}
		ids = append(ids, o.ID)
	}
	return ids, nil
}

// Process attempts the given jobs right away. Failures stay queued for Drain; the returned Result is
// informational and Process never fails the caller's already-committed operation.
func (q *Queue) Process(ctx context.Context, ids []uuid.UUID) Result {
	var res Result
	for _, id := range ids {
		var job *orphan.Object
		err := q.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			o, err := tx.Orphans().Get(ctx, id)
			job = o
			return err
		})
		if err != nil {
			if !apperrors.IsNotFound(err) {
				q.log.Warn().Err(err).Str("job_id", id.String()).Msg("failed to load cleanup job")
				res.Failed++
			}
			continue
		}
		if q.attempt(ctx, job) {
			res.Deleted++
		} else {
			res.Failed++
		}
	}
	return res
}

// Drain processes up to limit jobs whose next attempt is due.
func (q *Queue) Drain(ctx context.Context, limit int) (Result, error) {
	var due []*orphan.Object
	err := q.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		now := q.now().UTC()
		due, err = tx.Orphans().ClaimDue(ctx, now, now.Add(claimLease), limit)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, job := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if q.attempt(ctx, job) {
			res.Deleted++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

// attempt deletes one object and settles its job. The object call runs outside any transaction.
func (q *Queue) attempt(ctx context.Context, job *orphan.Object) bool {
	deleteErr := q.objects.DeleteObject(ctx, job.StorageKey)

	err := q.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if deleteErr == nil {
			return tx.Orphans().Delete(ctx, job.ID)
		}
		next := q.now().UTC().Add(backoff(job.Attempts + 1))
		return tx.Orphans().RecordFailure(ctx, job.ID, truncate(deleteErr.Error()), next)
	})
	if err != nil {
		q.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to settle cleanup job")
		return false
	}

	if deleteErr != nil {
		q.log.Warn().
			Err(deleteErr).
			Str("storage_key", job.StorageKey).
			Int("attempts", job.Attempts+1).
			Msg("object delete failed, will retry")
		return false
	}

	q.log.Debug().Str("storage_key", job.StorageKey).Str("reason", string(job.Reason)).Msg("object deleted")
	return true
}

func backoff(attempts int) time.Duration {
	d := baseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func truncate(s string) string {
	if len(s) <= maxErrLength {
		return s
	}
	return s[:maxErrLength]
}
