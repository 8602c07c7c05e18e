package postgres

import (
	"context"
	"errors"
	"time"

	"drive-service/internal/domain/orphan"
	"drive-service/internal/domain/quota"
	"drive-service/internal/domain/share"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const shareColumns = `code, file_id, owner_id, expires_at, created_at`

type shareRepo struct {
	q pgx.Tx
}

func (r *shareRepo) Insert(ctx context.Context, sc *share.ShareCode) (bool, error) {
	query := `
		INSERT INTO share_codes (` + shareColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING
	`
	tag, err := r.q.Exec(ctx, query, sc.Code, sc.FileID, sc.OwnerID, sc.ExpiresAt, sc.CreatedAt)
	if err != nil {
		if mapped := uniqueViolation(err); mapped != nil {
			return false, mapped
		}
		return false, errFailedCreateShareCode(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *shareRepo) getOne(ctx context.Context, query string, arg any) (*share.ShareCode, error) {
	sc := &share.ShareCode{}
	err := r.q.QueryRow(ctx, query, arg).Scan(&sc.Code, &sc.FileID, &sc.OwnerID, &sc.ExpiresAt, &sc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(errShareCodeNotFound)
		}
		return nil, errFailedGetShareCode(err)
	}
	return sc, nil
}

func (r *shareRepo) GetByCode(ctx context.Context, code string) (*share.ShareCode, error) {
	return r.getOne(ctx, `SELECT `+shareColumns+` FROM share_codes WHERE code = $1`, code)
}

func (r *shareRepo) GetByFileID(ctx context.Context, fileID uuid.UUID) (*share.ShareCode, error) {
	return r.getOne(ctx, `SELECT `+shareColumns+` FROM share_codes WHERE file_id = $1`, fileID)
}

func (r *shareRepo) DeleteByCode(ctx context.Context, code string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM share_codes WHERE code = $1`, code)
	if err != nil {
		return false, errFailedDeleteShareCode(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *shareRepo) DeleteByFileIDs(ctx context.Context, fileIDs []uuid.UUID) (int64, error) {
	if len(fileIDs) == 0 {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM share_codes WHERE file_id = ANY($1)`, fileIDs)
	if err != nil {
		return 0, errFailedDeleteShareCode(err)
	}
	return tag.RowsAffected(), nil
}

func (r *shareRepo) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM share_codes
		WHERE code IN (
			SELECT code FROM share_codes
			WHERE expires_at <= $1
			ORDER BY expires_at
			LIMIT NULLIF($2::int, 0)
		)
	`
	tag, err := r.q.Exec(ctx, query, now, limit)
	if err != nil {
		return 0, errFailedDeleteShareCode(err)
	}
	return tag.RowsAffected(), nil
}

const usageColumns = `user_id, plan_id, used_bytes, quota_bytes, updated_at`

type quotaRepo struct {
	q pgx.Tx
}

func (r *quotaRepo) Ensure(ctx context.Context, u *quota.Usage) error {
	query := `
		INSERT INTO quota_usage (` + usageColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, query, u.UserID, u.PlanID, u.UsedBytes, u.QuotaBytes, u.UpdatedAt); err != nil {
		return errFailedEnsureUsage(err)
	}
	return nil
}

func (r *quotaRepo) getOne(ctx context.Context, query string, userID uuid.UUID) (*quota.Usage, error) {
	u := &quota.Usage{}
	err := r.q.QueryRow(ctx, query, userID).Scan(&u.UserID, &u.PlanID, &u.UsedBytes, &u.QuotaBytes, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(errUsageNotFound)
		}
		return nil, errFailedGetUsage(err)
	}
	return u, nil
}

func (r *quotaRepo) Get(ctx context.Context, userID uuid.UUID) (*quota.Usage, error) {
	return r.getOne(ctx, `SELECT `+usageColumns+` FROM quota_usage WHERE user_id = $1`, userID)
}

func (r *quotaRepo) GetForUpdate(ctx context.Context, userID uuid.UUID) (*quota.Usage, error) {
	return r.getOne(ctx, `SELECT `+usageColumns+` FROM quota_usage WHERE user_id = $1 FOR UPDATE`, userID)
}

func (r *quotaRepo) SetUsed(ctx context.Context, userID uuid.UUID, usedBytes int64, at time.Time) error {
	return r.update(ctx, `UPDATE quota_usage SET used_bytes = $2, updated_at = $3 WHERE user_id = $1`, userID, usedBytes, at)
}

func (r *quotaRepo) SetPlan(ctx context.Context, userID uuid.UUID, planID string, quotaBytes int64, at time.Time) error {
	return r.update(ctx,
		`UPDATE quota_usage SET plan_id = $2, quota_bytes = $3, updated_at = $4 WHERE user_id = $1`,
		userID, planID, quotaBytes, at)
}

func (r *quotaRepo) update(ctx context.Context, query string, args ...any) error {
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return errFailedUpdateUsage(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(errUsageNotFound)
	}
	return nil
}

const (
	orphanColumns   = `id, storage_key, reason, attempts, last_error, created_at, next_attempt_at`
	orphanReturning = `c.id, c.storage_key, c.reason, c.attempts, c.last_error, c.created_at, c.next_attempt_at`
)

type orphanRepo struct {
	q pgx.Tx
}

func scanOrphan(row pgx.Row) (*orphan.Object, error) {
	o := &orphan.Object{}
	var reason string
	if err := row.Scan(&o.ID, &o.StorageKey, &reason, &o.Attempts, &o.LastError, &o.CreatedAt, &o.NextAttemptAt); err != nil {
		return nil, err
	}
	o.Reason = orphan.Reason(reason)
	return o, nil
}

func (r *orphanRepo) Enqueue(ctx context.Context, o *orphan.Object) error {
	query := `
		INSERT INTO cleanup_queue (` + orphanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.Exec(ctx, query, o.ID, o.StorageKey, string(o.Reason), o.Attempts, o.LastError, o.CreatedAt, o.NextAttemptAt)
	if err != nil {
		return errFailedEnqueueOrphan(err)
	}
	return nil
}

func (r *orphanRepo) Get(ctx context.Context, id uuid.UUID) (*orphan.Object, error) {
	o, err := scanOrphan(r.q.QueryRow(ctx, `SELECT `+orphanColumns+` FROM cleanup_queue WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(errOrphanNotFound)
		}
		return nil, errFailedGetOrphan(err)
	}
	return o, nil
}

// ClaimDue skips rows another drainer has locked and leases the rest, so concurrent workers split
// the queue and a claimed job stays claimed after this transaction commits.
func (r *orphanRepo) ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*orphan.Object, error) {
	query := `
		WITH due AS (
			SELECT id
			FROM cleanup_queue
			WHERE next_attempt_at <= $1
			ORDER BY next_attempt_at
			LIMIT NULLIF($3::int, 0)
			FOR UPDATE SKIP LOCKED
		)
		UPDATE cleanup_queue c
		SET next_attempt_at = $2
		FROM due
		WHERE c.id = due.id
		RETURNING ` + orphanReturning + `
	`
	rows, err := r.q.Query(ctx, query, now, leaseUntil, limit)
	if err != nil {
		return nil, errFailedListOrphans(err)
	}
	defer rows.Close()

	claimed := make([]*orphan.Object, 0)
	for rows.Next() {
		o, err := scanOrphan(rows)
		if err != nil {
			return nil, errFailedScanOrphan(err)
		}
		claimed = append(claimed, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errFailedListOrphans(err)
	}
	return claimed, nil
}

func (r *orphanRepo) RecordFailure(ctx context.Context, id uuid.UUID, lastError string, next time.Time) error {
	query := `
		UPDATE cleanup_queue
		SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query, id, lastError, next)
	if err != nil {
		return errFailedUpdateOrphan(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(errOrphanNotFound)
	}
	return nil
}

func (r *orphanRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM cleanup_queue WHERE id = $1`, id); err != nil {
		return errFailedDeleteOrphan(err)
	}
	return nil
}
