package postgres

import (
	"context"
	"fmt"

	"drive-service/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type tx struct {
	q pgx.Tx
}

func (t *tx) Entries() repository.EntryRepository        { return &entryRepo{q: t.q} }
func (t *tx) ShareCodes() repository.ShareCodeRepository { return &shareRepo{q: t.q} }
func (t *tx) Quotas() repository.QuotaRepository         { return &quotaRepo{q: t.q} }
func (t *tx) Orphans() repository.OrphanRepository       { return &orphanRepo{q: t.q} }

func (t *tx) LockTree(ctx context.Context, ownerID uuid.UUID, exclusive bool) error {
	query := `SELECT pg_advisory_xact_lock_shared(hashtextextended($1, 0))`
	if exclusive {
		query = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	}
	return t.advisoryLock(ctx, query, fmt.Sprintf(lockKeyTreeFmt, ownerID))
}

func (t *tx) LockSiblings(ctx context.Context, ownerID, parentID uuid.UUID) error {
	query := `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	return t.advisoryLock(ctx, query, fmt.Sprintf(lockKeySiblingsFmt, ownerID, parentID))
}

func (t *tx) advisoryLock(ctx context.Context, query, key string) error {
	if _, err := t.q.Exec(ctx, query, key); err != nil {
		return errFailedAcquireLock(err)
	}
	return nil
}
