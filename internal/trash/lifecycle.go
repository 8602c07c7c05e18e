// Package trash moves entries between ACTIVE, TRASHED and ARCHIVED and removes them for good.
//
// Trash and archive stamp every entry they change with the id of the entry the call was made on (the
// batch id). Restore and unarchive revert exactly that batch, so an entry trashed on its own earlier
// keeps its own state when its parent is restored.
package trash

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drive-service/internal/cleanup"
	"drive-service/internal/domain/entry"
	"drive-service/internal/domain/orphan"
	"drive-service/internal/entries"
	"drive-service/internal/quota"
	"drive-service/internal/repository"
	"drive-service/internal/sharing"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Item is one trash batch as shown in the trash listing.
type Item struct {
	Entry   *entry.Entry
	PurgeAt time.Time
}

// PurgeResult counts what a purge removed.
type PurgeResult struct {
	Entries    int
	FreedBytes int64
}

type Lifecycle struct {
	txm       repository.TxManager
	entries   *entries.Store
	ledger    *quota.Ledger
	shares    *sharing.Registry
	cleanup   *cleanup.Queue
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewLifecycle creates a trash lifecycle. Entries trashed longer than retention are purged by PurgeExpired.
func NewLifecycle(
	txm repository.TxManager,
	store *entries.Store,
	ledger *quota.Ledger,
	shares *sharing.Registry,
	queue *cleanup.Queue,
	retention time.Duration,
	logger zerolog.Logger,
) *Lifecycle {
	return &Lifecycle{
		txm:       txm,
		entries:   store,
		ledger:    ledger,
		shares:    shares,
		cleanup:   queue,
		retention: retention,
		now:       time.Now,
		log:       logger.With().Str("component", "trash").Logger(),
	}
}

// WithClock replaces the time source, for tests.
func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	l.now = now
	return l
}

// Trash marks id and its ACTIVE descendants TRASHED in one transaction. Quota is not released and
// share codes of the affected files are revoked.
func (l *Lifecycle) Trash(ctx context.Context, ownerID, id uuid.UUID) (*entry.Entry, error) {
	return l.hide(ctx, ownerID, id, entry.StatusTrashed)
}

// Archive marks id and its ACTIVE descendants ARCHIVED. Archived files keep their quota.
func (l *Lifecycle) Archive(ctx context.Context, ownerID, id uuid.UUID) (*entry.Entry, error) {
	return l.hide(ctx, ownerID, id, entry.StatusArchived)
}

func (l *Lifecycle) hide(ctx context.Context, ownerID, id uuid.UUID, status entry.Status) (*entry.Entry, error) {
	var (
		result  *entry.Entry
		changed int
	)
	err := l.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockTree(ctx, ownerID, true); err != nil {
			return err
		}
		e, err := entries.Owned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if e.IsRoot() {
			return apperrors.InvalidState("root folder cannot be " + verb(status))
		}
		if !e.IsActive() {
			return apperrors.InvalidState(fmt.Sprintf("only active entries can be %s", verb(status)))
		}

		subtree, err := l.entries.Walker(tx, entry.StatusActive).Collect(ctx, e, entries.IsDirectory)
		if err != nil {
			return err
		}

		now := l.now().UTC()
		batch := e.ID
		change := repository.StateChange{Status: status, BatchID: &batch, At: now}
		if status == entry.StatusTrashed {
			change.TrashedAt = &now
		} else {
			change.ArchivedAt = &now
		}

		if err := tx.Entries().SetState(ctx, ids(subtree), change); err != nil {
			return err
		}
		if _, err := l.shares.RevokeForFiles(ctx, tx, fileIDs(subtree)); err != nil {
			return err
		}

		e.Status = status
		e.BatchID = &batch
		e.TrashedAt = change.TrashedAt
		e.ArchivedAt = change.ArchivedAt
		e.UpdatedAt = now
		result = e
		changed = len(subtree)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().Str("entry_id", id.String()).Str("status", string(status)).Int("entries", changed).Msg("subtree hidden")
	return result, nil
}

// Restore reverts the trash batch id belongs to. The parent must be ACTIVE; restore top-down.
func (l *Lifecycle) Restore(ctx context.Context, ownerID, id uuid.UUID) (*entry.Entry, error) {
	return l.reveal(ctx, ownerID, id, entry.StatusTrashed)
}

// Unarchive reverts the archive batch id belongs to. The parent must be ACTIVE.
func (l *Lifecycle) Unarchive(ctx context.Context, ownerID, id uuid.UUID) (*entry.Entry, error) {
	return l.reveal(ctx, ownerID, id, entry.StatusArchived)
}

func (l *Lifecycle) reveal(ctx context.Context, ownerID, id uuid.UUID, from entry.Status) (*entry.Entry, error) {
	var (
		result   *entry.Entry
		restored int
	)
	err := l.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockTree(ctx, ownerID, true); err != nil {
			return err
		}
		e, err := entries.Owned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if e.Status != from {
			return apperrors.InvalidState(fmt.Sprintf("entry is %s, not %s", e.Status, from))
		}

		parent, err := tx.Entries().Get(ctx, *e.ParentID)
		if err != nil {
			return err
		}
		if !parent.IsActive() {
			if parent.Status == entry.StatusTrashed {
				return apperrors.ParentStillTrashed("restore the parent folder first")
			}
			return apperrors.InvalidState("parent folder is not active")
		}

		batch := e.ID
		if e.BatchID != nil {
			batch = *e.BatchID
		}
		inBatch := func(c *entry.Entry) bool { return c.InBatch(batch) || c.ID == e.ID }

		subtree, err := l.entries.Walker(tx, from).Collect(ctx, e, func(c *entry.Entry) bool {
			return c.IsDirectory && inBatch(c)
		})
		if err != nil {
			return err
		}
		members := make([]uuid.UUID, 0, len(subtree))
		for _, c := range subtree {
			if inBatch(c) {
				members = append(members, c.ID)
			}
		}

		now := l.now().UTC()
		if err := tx.Entries().SetState(ctx, members, repository.StateChange{Status: entry.StatusActive, At: now}); err != nil {
			return err
		}

		e.Status = entry.StatusActive
		e.BatchID = nil
		e.TrashedAt = nil
		e.ArchivedAt = nil
		e.UpdatedAt = now
		result = e
		restored = len(members)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().Str("entry_id", id.String()).Str("from", string(from)).Int("entries", restored).Msg("subtree restored")
	return result, nil
}

// Purge permanently removes a TRASHED entry and its subtree now, regardless of the retention window.
func (l *Lifecycle) Purge(ctx context.Context, ownerID, id uuid.UUID) (PurgeResult, error) {
	return l.remove(ctx, ownerID, id, orphan.ReasonPurged, func(e *entry.Entry) error {
		if e.Status != entry.StatusTrashed {
			return apperrors.InvalidState("only trashed entries can be purged")
		}
		return nil
	})
}

// DeletePermanently removes an entry and its subtree whatever their status.
func (l *Lifecycle) DeletePermanently(ctx context.Context, ownerID, id uuid.UUID) (PurgeResult, error) {
	return l.remove(ctx, ownerID, id, orphan.ReasonDeleted, nil)
}

// PurgeExpired purges up to limit trash batches older than the retention window. Each batch commits
// on its own; a failing batch is logged and skipped.
func (l *Lifecycle) PurgeExpired(ctx context.Context, limit int) (PurgeResult, error) {
	cutoff := l.now().UTC().Add(-l.retention)

	var roots []*entry.Entry
	err := l.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		roots, err = tx.Entries().ListExpiredTrashRoots(ctx, cutoff, limit)
		return err
	})
	if err != nil {
		return PurgeResult{}, err
	}

	var (
		total PurgeResult
		errs  []error
	)
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := l.remove(ctx, root.OwnerID, root.ID, orphan.ReasonPurged, func(e *entry.Entry) error {
			if e.Status != entry.StatusTrashed || e.TrashedAt == nil || !e.TrashedAt.Before(cutoff) {
				return errSkip
			}
			return nil
		})
		if errors.Is(err, errSkip) || apperrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			l.log.Error().Err(err).Str("entry_id", root.ID.String()).Msg("failed to purge expired trash")
			errs = append(errs, err)
			continue
		}
		total.Entries += res.Entries
		total.FreedBytes += res.FreedBytes
	}

	if total.Entries > 0 {
		l.log.Info().Int("entries", total.Entries).Int64("freed_bytes", total.FreedBytes).Msg("expired trash purged")
	}
	return total, errors.Join(errs...)
}

var errSkip = errors.New("entry no longer eligible")

// remove deletes id's subtree children first, releases the freed bytes once and queues the objects.
// The ledger release is tied to the row deletes in the same transaction, so a retried removal that
// finds rows already gone releases nothing for them.
func (l *Lifecycle) remove(ctx context.Context, ownerID, id uuid.UUID, reason orphan.Reason, check func(*entry.Entry) error) (PurgeResult, error) {
	var (
		res  PurgeResult
		jobs []uuid.UUID
	)
	err := l.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockTree(ctx, ownerID, true); err != nil {
			return err
		}
		e, err := entries.Owned(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if e.IsRoot() {
			return apperrors.InvalidState("root folder cannot be deleted")
		}
		if check != nil {
			if err := check(e); err != nil {
				return err
			}
		}

		subtree, err := l.entries.Walker(tx).Collect(ctx, e, entries.IsDirectory)
		if err != nil {
			return err
		}
		if reason == orphan.ReasonPurged {
			for _, c := range subtree {
				if c.IsActive() {
					l.log.Error().
						Err(apperrors.ErrInvariantViolation).
						Str("entry_id", c.ID.String()).
						Str("trash_root", e.ID.String()).
						Msg("active entry inside trashed subtree")
					return apperrors.InvariantViolation("active entry inside trashed subtree")
				}
			}
		}

		if _, err := l.shares.RevokeForFiles(ctx, tx, fileIDs(subtree)); err != nil {
			return err
		}

		keys := make([]string, 0)
		res = PurgeResult{}
		for i := len(subtree) - 1; i >= 0; i-- {
			c := subtree[i]
			deleted, err := tx.Entries().Delete(ctx, c.ID)
			if err != nil {
				return err
			}
			if !deleted {
				continue
			}
			res.Entries++
			if !c.IsDirectory {
				res.FreedBytes += c.SizeBytes()
				if c.StorageKey != nil {
					keys = append(keys, *c.StorageKey)
				}
			}
		}

		if res.FreedBytes > 0 {
			if _, err := l.ledger.Release(ctx, tx, ownerID, res.FreedBytes); err != nil {
				return err
			}
		}

		jobs, err = l.cleanup.Schedule(ctx, tx, keys, reason)
		return err
	})
	if err != nil {
		return PurgeResult{}, err
	}

	l.cleanup.Process(ctx, jobs)
	l.log.Info().
		Str("entry_id", id.String()).
		Str("reason", string(reason)).
		Int("entries", res.Entries).
		Int64("freed_bytes", res.FreedBytes).
		Msg("subtree removed")
	return res, nil
}

// ListTrash returns the owner's trash batches, oldest first, with the time each becomes eligible for purge.
func (l *Lifecycle) ListTrash(ctx context.Context, ownerID uuid.UUID) ([]Item, error) {
	var items []Item
	err := l.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		roots, err := tx.Entries().ListTrashRoots(ctx, ownerID)
		if err != nil {
			return err
		}
		items = make([]Item, 0, len(roots))
		for _, r := range roots {
			items = append(items, Item{Entry: r, PurgeAt: r.TrashedAt.Add(l.retention)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func ids(es []*entry.Entry) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func fileIDs(es []*entry.Entry) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(es))
	for _, e := range es {
		if !e.IsDirectory {
			out = append(out, e.ID)
		}
	}
	return out
}

func verb(status entry.Status) string {
	if status == entry.StatusArchived {
		return "archived"
	}
	return "trashed"
}
