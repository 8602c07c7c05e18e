package repository

import (
	"context"
	"drive-service/internal/domain/entry"
	"drive-service/internal/domain/orphan"
	"drive-service/internal/domain/quota"
	"drive-service/internal/domain/share"
	"time"

	"github.com/google/uuid"
)

// TxManager runs fn inside one atomic unit: every write fn makes through tx commits together or not at all.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is an explicit transaction handle. Repositories obtained from it only see and write through it.
//
// Lock order inside one transaction is LockTree, then the quota row, then LockSiblings.
type Tx interface {
	Entries() EntryRepository
	ShareCodes() ShareCodeRepository
	Quotas() QuotaRepository
	Orphans() OrphanRepository

	// LockTree serializes structural changes to one owner's tree. Subtree operations take it
	// exclusively, single-entry writes take it shared.
	LockTree(ctx context.Context, ownerID uuid.UUID, exclusive bool) error
	// LockSiblings gives the caller an exclusive section over one directory's direct children.
	LockSiblings(ctx context.Context, ownerID, parentID uuid.UUID) error
}

// Within runs fn in tx when the caller already holds one, otherwise in a fresh transaction from m.
func Within(ctx context.Context, m TxManager, tx Tx, fn func(ctx context.Context, tx Tx) error) error {
	if tx != nil {
		return fn(ctx, tx)
	}
	return m.InTx(ctx, fn)
}

// StateChange is applied to a set of entries by trash, restore, archive and unarchive.
type StateChange struct {
	Status     entry.Status
	BatchID    *uuid.UUID
	TrashedAt  *time.Time
	ArchivedAt *time.Time
	At         time.Time
}

// EntryRepository defines entry data access operations
type EntryRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entry.Entry, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*entry.Entry, error)
	GetRoot(ctx context.Context, ownerID uuid.UUID) (*entry.Entry, error)
	GetByIdempotencyKey(ctx context.Context, ownerID uuid.UUID, key string) (*entry.Entry, error)
	GetByStorageKey(ctx context.Context, storageKey string) (*entry.Entry, error)
	ListChildren(ctx context.Context, ownerID, parentID uuid.UUID, statuses []entry.Status) ([]*entry.Entry, error)
	ChildNames(ctx context.Context, ownerID, parentID uuid.UUID) ([]string, error)
	NameTaken(ctx context.Context, ownerID, parentID uuid.UUID, name string, exclude *uuid.UUID) (bool, error)
	ListTrashRoots(ctx context.Context, ownerID uuid.UUID) ([]*entry.Entry, error)
	ListExpiredTrashRoots(ctx context.Context, cutoff time.Time, limit int) ([]*entry.Entry, error)
	SumFileSizes(ctx context.Context, ownerID uuid.UUID) (int64, error)

	// InsertRoot is a no-op when the owner already has a root.
	InsertRoot(ctx context.Context, e *entry.Entry) error
	Insert(ctx context.Context, e *entry.Entry) error
	Rename(ctx context.Context, id uuid.UUID, name string, at time.Time) error
	Reparent(ctx context.Context, id, parentID uuid.UUID, at time.Time) error
	SetState(ctx context.Context, ids []uuid.UUID, change StateChange) error
	// Delete reports false when the row was already gone.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// ShareCodeRepository defines share code data access operations
type ShareCodeRepository interface {
	// Insert reports false without error when the code itself is already taken.
	Insert(ctx context.Context, sc *share.ShareCode) (bool, error)
	GetByCode(ctx context.Context, code string) (*share.ShareCode, error)
	GetByFileID(ctx context.Context, fileID uuid.UUID) (*share.ShareCode, error)
	DeleteByCode(ctx context.Context, code string) (bool, error)
	DeleteByFileIDs(ctx context.Context, fileIDs []uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// QuotaRepository defines per-user ledger data access operations
type QuotaRepository interface {
	// Ensure inserts u when no row exists for u.UserID and leaves an existing row untouched.
	Ensure(ctx context.Context, u *quota.Usage) error
	Get(ctx context.Context, userID uuid.UUID) (*quota.Usage, error)
	GetForUpdate(ctx context.Context, userID uuid.UUID) (*quota.Usage, error)
	SetUsed(ctx context.Context, userID uuid.UUID, usedBytes int64, at time.Time) error
	SetPlan(ctx context.Context, userID uuid.UUID, planID string, quotaBytes int64, at time.Time) error
}

// OrphanRepository defines the object cleanup queue operations
type OrphanRepository interface {
	Enqueue(ctx context.Context, o *orphan.Object) error
	Get(ctx context.Context, id uuid.UUID) (*orphan.Object, error)
	// ClaimDue returns up to limit jobs due at now and moves their next attempt to leaseUntil in the
	// same statement, so no other drainer picks them up before the lease ends.
	ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*orphan.Object, error)
	RecordFailure(ctx context.Context, id uuid.UUID, lastError string, next time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}
