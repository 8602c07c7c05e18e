// Package quota keeps each user's used bytes against the quota granted by their plan.
//
// Only upload completion (reserve) and physical removal (release) move usedBytes. Trash, restore,
// archive and unarchive never touch the ledger.
package quota

import (
	"context"
	"fmt"
	"time"

	"drive-service/internal/domain/quota"
	"drive-service/internal/repository"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PlanProvider is the billing collaborator. The ledger only reads from it.
type PlanProvider interface {
	PlanFor(ctx context.Context, userID uuid.UUID) (quota.Plan, error)
}

// Ledger serializes all changes for one user on that user's usage row.
type Ledger struct {
	txm   repository.TxManager
	plans PlanProvider
	now   func() time.Time
	log   zerolog.Logger
}

// NewLedger creates a new quota ledger
func NewLedger(txm repository.TxManager, plans PlanProvider, logger zerolog.Logger) *Ledger {
	return &Ledger{
		txm:   txm,
		plans: plans,
		now:   time.Now,
		log:   logger.With().Str("component", "quota").Logger(),
	}
}

// WithClock replaces the time source, for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Lock returns userID's usage row locked for the rest of tx, creating it from the user's plan on
// first use. Callers that reserve after other checks take this lock first to close check-then-act races.
func (l *Ledger) Lock(ctx context.Context, tx repository.Tx, userID uuid.UUID) (*quota.Usage, error) {
	u, err := tx.Quotas().GetForUpdate(ctx, userID)
	if err == nil {
		return u, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	plan, err := l.plans.PlanFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}
	if err := tx.Quotas().Ensure(ctx, &quota.Usage{
		UserID:     userID,
		PlanID:     plan.ID,
		QuotaBytes: plan.QuotaBytes,
		UpdatedAt:  l.now().UTC(),
	}); err != nil {
		return nil, err
	}
	return tx.Quotas().GetForUpdate(ctx, userID)
}

// Reserve adds delta bytes to userID's usage, failing with QuotaExceeded when the result would pass
// the quota. It runs in tx when given.
func (l *Ledger) Reserve(ctx context.Context, tx repository.Tx, userID uuid.UUID, delta int64) (*quota.Usage, error) {
	if delta < 0 {
		return nil, apperrors.Validation("reserve delta must not be negative")
	}

	var usage *quota.Usage
	err := repository.Within(ctx, l.txm, tx, func(ctx context.Context, tx repository.Tx) error {
		u, err := l.Lock(ctx, tx, userID)
		if err != nil {
			return err
		}
		if u.UsedBytes+delta > u.QuotaBytes {
			return apperrors.QuotaExceeded(fmt.Sprintf("storing %d more bytes would exceed the %d byte quota", delta, u.QuotaBytes))
		}

		u.UsedBytes += delta
		u.UpdatedAt = l.now().UTC()
		if err := tx.Quotas().SetUsed(ctx, userID, u.UsedBytes, u.UpdatedAt); err != nil {
			return err
		}
		usage = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// Release subtracts delta bytes from userID's usage. Usage is floored at zero; an underflow is logged
// as an invariant violation and the release still commits.
func (l *Ledger) Release(ctx context.Context, tx repository.Tx, userID uuid.UUID, delta int64) (*quota.Usage, error) {
	if delta < 0 {
		return nil, apperrors.Validation("release delta must not be negative")
	}

	var usage *quota.Usage
	err := repository.Within(ctx, l.txm, tx, func(ctx context.Context, tx repository.Tx) error {
		u, err := l.Lock(ctx, tx, userID)
		if err != nil {
			return err
		}

		next := u.UsedBytes - delta
		if next < 0 {
			l.log.Error().
				Err(apperrors.ErrInvariantViolation).
				Str("user_id", userID.String()).
				Int64("used_bytes", u.UsedBytes).
				Int64("delta", delta).
				Msg("quota release would underflow, flooring at zero")
			next = 0
		}

		u.UsedBytes = next
		u.UpdatedAt = l.now().UTC()
		if err := tx.Quotas().SetUsed(ctx, userID, u.UsedBytes, u.UpdatedAt); err != nil {
			return err
		}
		usage = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// GetUsage returns used and quota bytes for userID.
func (l *Ledger) GetUsage(ctx context.Context, userID uuid.UUID) (*quota.Usage, error) {
	var usage *quota.Usage
	err := l.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := l.Lock(ctx, tx, userID)
		usage = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// ApplyPlanChange records a new plan for userID. usedBytes is never changed, so a quota below current
// usage is accepted and only blocks further reserves.
func (l *Ledger) ApplyPlanChange(ctx context.Context, userID uuid.UUID, planID string, quotaBytes int64) (*quota.Usage, error) {
	if planID == "" {
		return nil, apperrors.Validation("plan id is required")
	}
	if quotaBytes < 0 {
		return nil, apperrors.Validation("quota must not be negative")
	}

	var usage *quota.Usage
	err := l.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := l.Lock(ctx, tx, userID)
		if err != nil {
			return err
		}

		at := l.now().UTC()
		if err := tx.Quotas().SetPlan(ctx, userID, planID, quotaBytes, at); err != nil {
			return err
		}
		u.PlanID = planID
		u.QuotaBytes = quotaBytes
		u.UpdatedAt = at
		usage = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().Str("user_id", userID.String()).Str("plan_id", planID).Int64("quota_bytes", quotaBytes).Msg("plan changed")
	return usage, nil
}

// Verify recomputes usage from the user's stored files and fails with InvariantViolation when the
// ledger disagrees.
func (l *Ledger) Verify(ctx context.Context, userID uuid.UUID) error {
	return l.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := l.Lock(ctx, tx, userID)
		if err != nil {
			return err
		}
		actual, err := tx.Entries().SumFileSizes(ctx, userID)
		if err != nil {
			return err
		}
		if actual != u.UsedBytes {
			l.log.Error().
				Str("user_id", userID.String()).
				Int64("ledger_bytes", u.UsedBytes).
				Int64("stored_bytes", actual).
				Msg("quota ledger drifted from stored files")
			return apperrors.InvariantViolation(fmt.Sprintf("ledger has %d bytes, files sum to %d", u.UsedBytes, actual))
		}
		return nil
	})
}
