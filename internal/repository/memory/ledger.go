package memory

import (
	"context"
	"drive-service/internal/domain/orphan"
	"drive-service/internal/domain/quota"
	"drive-service/internal/domain/share"
	apperrors "drive-service/pkg/errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

type shareRepo struct {
	st *state
}

func (r *shareRepo) Insert(ctx context.Context, sc *share.ShareCode) (bool, error) {
	if _, taken := r.st.shares[sc.Code]; taken {
		return false, nil
	}
	for _, existing := range r.st.shares {
		if existing.FileID == sc.FileID {
			return false, apperrors.Conflict(errShareFileTaken)
		}
	}
	v := *sc
	r.st.shares[sc.Code] = &v
	return true, nil
}

func (r *shareRepo) GetByCode(ctx context.Context, code string) (*share.ShareCode, error) {
	sc, ok := r.st.shares[code]
	if !ok {
		return nil, apperrors.NotFound(errShareCodeNotFound)
	}
	v := *sc
	return &v, nil
}

func (r *shareRepo) GetByFileID(ctx context.Context, fileID uuid.UUID) (*share.ShareCode, error) {
	for _, sc := range r.st.shares {
		if sc.FileID == fileID {
			v := *sc
			return &v, nil
		}
	}
	return nil, apperrors.NotFound(errShareCodeNotFound)
}

func (r *shareRepo) DeleteByCode(ctx context.Context, code string) (bool, error) {
	if _, ok := r.st.shares[code]; !ok {
		return false, nil
	}
	delete(r.st.shares, code)
	return true, nil
}

func (r *shareRepo) DeleteByFileIDs(ctx context.Context, fileIDs []uuid.UUID) (int64, error) {
	wanted := make(map[uuid.UUID]struct{}, len(fileIDs))
	for _, id := range fileIDs {
		wanted[id] = struct{}{}
	}

	var n int64
	for code, sc := range r.st.shares {
		if _, ok := wanted[sc.FileID]; ok {
			delete(r.st.shares, code)
			n++
		}
	}
	return n, nil
}

func (r *shareRepo) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	var n int64
	for code, sc := range r.st.shares {
		if limit > 0 && n >= int64(limit) {
			break
		}
		if sc.IsExpired(now) {
			delete(r.st.shares, code)
			n++
		}
	}
	return n, nil
}

type quotaRepo struct {
	st *state
}

func (r *quotaRepo) Ensure(ctx context.Context, u *quota.Usage) error {
	if _, ok := r.st.quotas[u.UserID]; ok {
		return nil
	}
	v := *u
	r.st.quotas[u.UserID] = &v
	return nil
}

func (r *quotaRepo) Get(ctx context.Context, userID uuid.UUID) (*quota.Usage, error) {
	u, ok := r.st.quotas[userID]
	if !ok {
		return nil, apperrors.NotFound(errUsageNotFound)
	}
	v := *u
	return &v, nil
}

func (r *quotaRepo) GetForUpdate(ctx context.Context, userID uuid.UUID) (*quota.Usage, error) {
	return r.Get(ctx, userID)
}

func (r *quotaRepo) SetUsed(ctx context.Context, userID uuid.UUID, usedBytes int64, at time.Time) error {
	u, ok := r.st.quotas[userID]
	if !ok {
		return apperrors.NotFound(errUsageNotFound)
	}
	u.UsedBytes = usedBytes
	u.UpdatedAt = at
	return nil
}

func (r *quotaRepo) SetPlan(ctx context.Context, userID uuid.UUID, planID string, quotaBytes int64, at time.Time) error {
	u, ok := r.st.quotas[userID]
	if !ok {
		return apperrors.NotFound(errUsageNotFound)
	}
	u.PlanID = planID
	u.QuotaBytes = quotaBytes
	u.UpdatedAt = at
	return nil
}

type orphanRepo struct {
	st *state
}

func (r *orphanRepo) Enqueue(ctx context.Context, o *orphan.Object) error {
	v := *o
	r.st.orphans[o.ID] = &v
	return nil
}

func (r *orphanRepo) Get(ctx context.Context, id uuid.UUID) (*orphan.Object, error) {
	o, ok := r.st.orphans[id]
	if !ok {
		return nil, apperrors.NotFound(errOrphanNotFound)
	}
	v := *o
	return &v, nil
}

func (r *orphanRepo) ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*orphan.Object, error) {
	due := make([]*orphan.Object, 0)
	for _, o := range r.st.orphans {
		if !o.NextAttemptAt.After(now) {
			due = append(due, o)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*orphan.Object, 0, len(due))
	for _, o := range due {
		o.NextAttemptAt = leaseUntil
		v := *o
		claimed = append(claimed, &v)
	}
	return claimed, nil
}

func (r *orphanRepo) RecordFailure(ctx context.Context, id uuid.UUID, lastError string, next time.Time) error {
	o, ok := r.st.orphans[id]
	if !ok {
		return apperrors.NotFound(errOrphanNotFound)
	}
	o.Attempts++
	o.LastError = lastError
	o.NextAttemptAt = next
	return nil
}

func (r *orphanRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.st.orphans, id)
	return nil
}
