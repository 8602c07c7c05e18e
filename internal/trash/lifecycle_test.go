package trash

import (
	"context"
	"errors"
	"testing"
	"time"

	"drive-service/internal/billing"
	"drive-service/internal/cleanup"
	"drive-service/internal/domain/entry"
	domainquota "drive-service/internal/domain/quota"
	"drive-service/internal/entries"
	"drive-service/internal/quota"
	"drive-service/internal/repository"
	"drive-service/internal/repository/memory"
	"drive-service/internal/sharing"
	"drive-service/internal/storage/storagetest"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const retention = 30 * 24 * time.Hour

type fixture struct {
	store     *memory.Store
	objects   *storagetest.ObjectStore
	entries   *entries.Store
	ledger    *quota.Ledger
	shares    *sharing.Registry
	lifecycle *Lifecycle
	now       time.Time
	owner     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.New(),
		objects: storagetest.New(),
		now:     time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		owner:   uuid.New(),
	}
	clock := func() time.Time { return f.now }
	log := zerolog.Nop()

	f.entries = entries.NewStore(f.store, 32, log).WithClock(clock)
	f.ledger = quota.NewLedger(f.store, billing.NewStaticPlans(domainquota.Plan{ID: "free", QuotaBytes: 10_000}), log)
	f.shares = sharing.NewRegistry(f.store, time.Hour, 16, log).WithClock(clock)
	queue := cleanup.NewQueue(f.store, f.objects, log).WithClock(clock)
	f.lifecycle = NewLifecycle(f.store, f.entries, f.ledger, f.shares, queue, retention, log).WithClock(clock)
	return f
}

func (f *fixture) dir(t *testing.T, parent *uuid.UUID, name string) *entry.Entry {
	t.Helper()
	e, err := f.entries.CreateDirectory(context.Background(), entry.CreateDirectoryInput{OwnerID: f.owner, ParentID: parent, Name: name})
	require.NoError(t, err)
	return e
}

// file stores an object and records it the way upload completion does: reserve and create together.
func (f *fixture) file(t *testing.T, parent *uuid.UUID, name string, size int64) *entry.Entry {
	t.Helper()
	key := "users/" + f.owner.String() + "/" + uuid.NewString()
	f.objects.Put(key, size)

	var e *entry.Entry
	err := f.store.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if _, err := f.ledger.Reserve(ctx, tx, f.owner, size); err != nil {
			return err
		}
		var err error
		e, err = f.entries.CreateFile(ctx, tx, entry.CreateFileInput{
			OwnerID: f.owner, ParentID: parent, Name: name, Size: size,
			MimeType: "application/octet-stream", Hash: "h", StorageKey: key,
		})
		return err
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) get(t *testing.T, id uuid.UUID) *entry.Entry {
	t.Helper()
	e, err := f.entries.Get(context.Background(), f.owner, id)
	require.NoError(t, err)
	return e
}

func (f *fixture) used(t *testing.T) int64 {
	t.Helper()
	u, err := f.ledger.GetUsage(context.Background(), f.owner)
	require.NoError(t, err)
	return u.UsedBytes
}

// tree builds docs/{a.txt(100), sub/{b.txt(200)}}.
func (f *fixture) tree(t *testing.T) (docs, sub, a, b *entry.Entry) {
	t.Helper()
	docs = f.dir(t, nil, "docs")
	a = f.file(t, &docs.ID, "a.txt", 100)
	sub = f.dir(t, &docs.ID, "sub")
	b = f.file(t, &sub.ID, "b.txt", 200)
	return
}

func TestTrashThenRestore(t *testing.T) {
	f := newFixture(t)
	docs, sub, a, b := f.tree(t)

	trashed, err := f.lifecycle.Trash(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.StatusTrashed, trashed.Status)

	for _, id := range []uuid.UUID{docs.ID, sub.ID, a.ID, b.ID} {
		e := f.get(t, id)
		assert.Equal(t, entry.StatusTrashed, e.Status)
		require.NotNil(t, e.TrashedAt)
		assert.Equal(t, f.now, *e.TrashedAt)
	}
	assert.Equal(t, int64(300), f.used(t), "trash keeps quota")

	_, err = f.lifecycle.Restore(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)

	for _, id := range []uuid.UUID{docs.ID, sub.ID, a.ID, b.ID} {
		e := f.get(t, id)
		assert.Equal(t, entry.StatusActive, e.Status)
		assert.Nil(t, e.TrashedAt)
		assert.Nil(t, e.BatchID)
	}
	assert.NoError(t, f.ledger.Verify(context.Background(), f.owner))
}

func TestRestore_KeepsIndividuallyTrashedChild(t *testing.T) {
	f := newFixture(t)
	docs, sub, a, _ := f.tree(t)

	_, err := f.lifecycle.Trash(context.Background(), f.owner, a.ID)
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)
	_, err = f.lifecycle.Trash(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.Restore(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)

	assert.Equal(t, entry.StatusActive, f.get(t, sub.ID).Status)
	child := f.get(t, a.ID)
	assert.Equal(t, entry.StatusTrashed, child.Status)
	assert.True(t, child.IsBatchRoot())

	_, err = f.lifecycle.Restore(context.Background(), f.owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.StatusActive, f.get(t, a.ID).Status)
}

func TestRestore_ParentStillTrashed(t *testing.T) {
	f := newFixture(t)
	docs, sub, _, _ := f.tree(t)

	_, err := f.lifecycle.Trash(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.Restore(context.Background(), f.owner, sub.ID)
	assert.True(t, errors.Is(err, apperrors.ErrParentStillTrashed))

	_, err = f.lifecycle.Restore(context.Background(), f.owner, uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestTrash_Rules(t *testing.T) {
	f := newFixture(t)
	docs, _, _, _ := f.tree(t)

	_, err := f.lifecycle.Restore(context.Background(), f.owner, docs.ID)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState), "restore of an active entry")

	_, err = f.lifecycle.Trash(context.Background(), uuid.New(), docs.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	root, err := f.entries.EnsureRoot(context.Background(), nil, f.owner)
	require.NoError(t, err)
	_, err = f.lifecycle.Trash(context.Background(), f.owner, root.ID)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))

	_, err = f.lifecycle.Trash(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)
	_, err = f.lifecycle.Trash(context.Background(), f.owner, docs.ID)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState), "already trashed")
}

func TestTrash_RevokesShareCodes(t *testing.T) {
	f := newFixture(t)
	docs, _, a, _ := f.tree(t)

	sc, err := f.shares.Issue(context.Background(), f.owner, a.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.Trash(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)

	_, err = f.shares.Resolve(context.Background(), sc.Code)
	assert.True(t, errors.Is(err, apperrors.ErrCodeNotFound))
}

func TestTrashThenPurge(t *testing.T) {
	f := newFixture(t)
	other := f.file(t, nil, "keep.txt", 50)
	docs, sub, a, b := f.tree(t)
	require.Equal(t, int64(350), f.used(t))

	_, err := f.lifecycle.Purge(context.Background(), f.owner, docs.ID)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState), "purge needs trashed entry")

	_, err = f.lifecycle.Trash(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)

	res, err := f.lifecycle.Purge(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Entries)
	assert.Equal(t, int64(300), res.FreedBytes)
	assert.Equal(t, int64(50), f.used(t))

	for _, id := range []uuid.UUID{docs.ID, sub.ID, a.ID, b.ID} {
		_, err := f.entries.Get(context.Background(), f.owner, id)
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	}
	assert.ElementsMatch(t, []string{*a.StorageKey, *b.StorageKey}, f.objects.Deleted())
	assert.True(t, f.objects.Has(*other.StorageKey))

	// A retried purge finds nothing and releases nothing.
	_, err = f.lifecycle.Purge(context.Background(), f.owner, docs.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, int64(50), f.used(t))
	assert.NoError(t, f.ledger.Verify(context.Background(), f.owner))
}

func TestPurge_ObjectFailureStaysQueued(t *testing.T) {
	f := newFixture(t)
	a := f.file(t, nil, "a.txt", 10)
	_, err := f.lifecycle.Trash(context.Background(), f.owner, a.ID)
	require.NoError(t, err)

	f.objects.FailDeletes(errors.New("unavailable"))
	_, err = f.lifecycle.Purge(context.Background(), f.owner, a.ID)
	require.NoError(t, err, "object deletion is decoupled from the purge commit")
	assert.Equal(t, int64(0), f.used(t))
	assert.True(t, f.objects.Has(*a.StorageKey))
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t)
	old := f.file(t, nil, "old.txt", 100)
	recent := f.file(t, nil, "recent.txt", 200)

	_, err := f.lifecycle.Trash(context.Background(), f.owner, old.ID)
	require.NoError(t, err)
	f.now = f.now.Add(20 * 24 * time.Hour)
	_, err = f.lifecycle.Trash(context.Background(), f.owner, recent.ID)
	require.NoError(t, err)

	f.now = f.now.Add(11 * 24 * time.Hour)
	res, err := f.lifecycle.PurgeExpired(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, PurgeResult{Entries: 1, FreedBytes: 100}, res)

	items, err := f.lifecycle.ListTrash(context.Background(), f.owner)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, recent.ID, items[0].Entry.ID)
	assert.Equal(t, items[0].Entry.TrashedAt.Add(retention), items[0].PurgeAt)
	assert.Equal(t, int64(200), f.used(t))
}

func TestDeletePermanently(t *testing.T) {
	f := newFixture(t)
	docs, _, a, _ := f.tree(t)

	sc, err := f.shares.Issue(context.Background(), f.owner, a.ID)
	require.NoError(t, err)

	res, err := f.lifecycle.DeletePermanently(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Entries)
	assert.Equal(t, int64(0), f.used(t))

	_, err = f.shares.Resolve(context.Background(), sc.Code)
	assert.True(t, errors.Is(err, apperrors.ErrCodeNotFound))

	root, err := f.entries.EnsureRoot(context.Background(), nil, f.owner)
	require.NoError(t, err)
	_, err = f.lifecycle.DeletePermanently(context.Background(), f.owner, root.ID)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
}

func TestArchiveAndUnarchive(t *testing.T) {
	f := newFixture(t)
	docs, sub, a, b := f.tree(t)

	_, err := f.lifecycle.Archive(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)
	for _, id := range []uuid.UUID{docs.ID, sub.ID, a.ID, b.ID} {
		e := f.get(t, id)
		assert.Equal(t, entry.StatusArchived, e.Status)
		assert.NotNil(t, e.ArchivedAt)
		assert.Nil(t, e.TrashedAt)
	}
	assert.Equal(t, int64(300), f.used(t), "archive keeps quota")

	_, err = f.lifecycle.Trash(context.Background(), f.owner, docs.ID)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState), "archived entries are outside the trash cycle")

	_, err = f.lifecycle.Unarchive(context.Background(), f.owner, sub.ID)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState), "parent still archived")

	_, err = f.lifecycle.Unarchive(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)
	for _, id := range []uuid.UUID{docs.ID, sub.ID, a.ID, b.ID} {
		assert.Equal(t, entry.StatusActive, f.get(t, id).Status)
	}
}

func TestLedgerMatchesFilesAfterMixedOperations(t *testing.T) {
	f := newFixture(t)
	docs, sub, a, _ := f.tree(t)
	f.file(t, nil, "x.bin", 700)

	_, err := f.lifecycle.Trash(context.Background(), f.owner, a.ID)
	require.NoError(t, err)
	_, err = f.lifecycle.Archive(context.Background(), f.owner, sub.ID)
	require.NoError(t, err)
	_, err = f.lifecycle.Purge(context.Background(), f.owner, a.ID)
	require.NoError(t, err)
	_, err = f.lifecycle.Trash(context.Background(), f.owner, docs.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(900), f.used(t))
	assert.NoError(t, f.ledger.Verify(context.Background(), f.owner))
}

func TestDeepestAllowedTreeStaysManageable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	top := f.dir(t, nil, "level-1")
	chain := []*entry.Entry{top}
	for i := 2; i <= 32; i++ {
		chain = append(chain, f.dir(t, &chain[len(chain)-1].ID, "level"))
	}
	deepest := chain[len(chain)-1]
	f.file(t, &chain[len(chain)-2].ID, "data.bin", 50)

	_, err := f.entries.CreateDirectory(ctx, entry.CreateDirectoryInput{OwnerID: f.owner, ParentID: &deepest.ID, Name: "too-deep"})
	assert.True(t, errors.Is(err, apperrors.ErrMaxDepthExceeded))

	_, err = f.lifecycle.Trash(ctx, f.owner, top.ID)
	require.NoError(t, err)
	_, err = f.lifecycle.Restore(ctx, f.owner, top.ID)
	require.NoError(t, err)

	res, err := f.lifecycle.DeletePermanently(ctx, f.owner, top.ID)
	require.NoError(t, err)
	assert.Equal(t, 33, res.Entries)
	assert.Equal(t, int64(50), res.FreedBytes)

	usage, err := f.ledger.GetUsage(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.UsedBytes)
}
