package sharing

import (
	"context"
	"errors"
	"testing"
	"time"

	"drive-service/internal/domain/entry"
	"drive-service/internal/entries"
	"drive-service/internal/repository"
	"drive-service/internal/repository/memory"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *memory.Store
	entries *entries.Store
	reg     *Registry
	now     time.Time
	owner   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		now:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		owner: uuid.New(),
	}
	f.entries = newTestEntries(f.store)
	f.reg = NewRegistry(f.store, 24*time.Hour, 16, zerolog.Nop()).WithClock(func() time.Time { return f.now })
	return f
}

func newTestEntries(store *memory.Store) *entries.Store {
	return entries.NewStore(store, 16, zerolog.Nop())
}

func (f *fixture) file(t *testing.T, name string) *entry.Entry {
	t.Helper()
	e, err := f.entries.CreateFile(context.Background(), nil, entry.CreateFileInput{
		OwnerID: f.owner, Name: name, Size: 10, MimeType: "text/plain", Hash: "h", StorageKey: "k/" + name,
	})
	require.NoError(t, err)
	return e
}

func TestIssueAndResolve(t *testing.T) {
	f := newFixture(t)
	file := f.file(t, "a.txt")

	sc, err := f.reg.Issue(context.Background(), f.owner, file.ID)
	require.NoError(t, err)
	assert.Len(t, sc.Code, 16)
	assert.True(t, sc.ExpiresAt.After(f.now))

	id, err := f.reg.Resolve(context.Background(), sc.Code)
	require.NoError(t, err)
	assert.Equal(t, file.ID, id)
}

func TestIssueTwice_ReplacesFirstCode(t *testing.T) {
	f := newFixture(t)
	file := f.file(t, "a.txt")

	first, err := f.reg.Issue(context.Background(), f.owner, file.ID)
	require.NoError(t, err)
	second, err := f.reg.Issue(context.Background(), f.owner, file.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first.Code, second.Code)

	_, err = f.reg.Resolve(context.Background(), first.Code)
	assert.True(t, errors.Is(err, apperrors.ErrCodeNotFound))

	current, err := f.reg.Current(context.Background(), f.owner, file.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Code, current.Code)
}

func TestIssue_Rules(t *testing.T) {
	f := newFixture(t)
	dir, err := f.entries.CreateDirectory(context.Background(), entry.CreateDirectoryInput{OwnerID: f.owner, Name: "d"})
	require.NoError(t, err)
	file := f.file(t, "a.txt")

	_, err = f.reg.Issue(context.Background(), f.owner, dir.ID)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = f.reg.Issue(context.Background(), uuid.New(), file.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = f.reg.Issue(context.Background(), f.owner, uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestIssue_RetriesOnCollision(t *testing.T) {
	f := newFixture(t)
	a := f.file(t, "a.txt")
	b := f.file(t, "b.txt")

	codes := []string{"AAAAAAAAAAAAAAAA", "AAAAAAAAAAAAAAAA", "BBBBBBBBBBBBBBBB"}
	f.reg.generate = func(int) (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	first, err := f.reg.Issue(context.Background(), f.owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAAAAAAAAAA", first.Code)

	second, err := f.reg.Issue(context.Background(), f.owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBBBBBBBBBB", second.Code)
}

func TestResolve_Expiry(t *testing.T) {
	f := newFixture(t)
	file := f.file(t, "a.txt")
	sc, err := f.reg.Issue(context.Background(), f.owner, file.ID)
	require.NoError(t, err)

	f.now = f.now.Add(24 * time.Hour)

	_, err = f.reg.Resolve(context.Background(), sc.Code)
	assert.True(t, errors.Is(err, apperrors.ErrCodeExpired))
	assert.True(t, errors.Is(err, apperrors.ErrCodeNotFound), "expired codes are also not found")

	n, err := f.reg.SweepExpired(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.reg.Resolve(context.Background(), sc.Code)
	assert.True(t, errors.Is(err, apperrors.ErrCodeNotFound))
	assert.False(t, errors.Is(err, apperrors.ErrCodeExpired))
}

func TestResolve_MalformedCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.reg.Resolve(context.Background(), "short")
	assert.True(t, errors.Is(err, apperrors.ErrCodeNotFound))

	_, err = f.reg.Resolve(context.Background(), "!!!!!!!!!!!!!!!!")
	assert.True(t, errors.Is(err, apperrors.ErrCodeNotFound))
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	file := f.file(t, "a.txt")
	sc, err := f.reg.Issue(context.Background(), f.owner, file.ID)
	require.NoError(t, err)

	err = f.reg.Revoke(context.Background(), uuid.New(), sc.Code)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	require.NoError(t, f.reg.Revoke(context.Background(), f.owner, sc.Code))

	_, err = f.reg.Resolve(context.Background(), sc.Code)
	assert.True(t, errors.Is(err, apperrors.ErrCodeNotFound))

	err = f.reg.Revoke(context.Background(), f.owner, sc.Code)
	assert.True(t, errors.Is(err, apperrors.ErrCodeNotFound))
}

func TestRevokeForFiles(t *testing.T) {
	f := newFixture(t)
	a := f.file(t, "a.txt")
	b := f.file(t, "b.txt")
	scA, err := f.reg.Issue(context.Background(), f.owner, a.ID)
	require.NoError(t, err)
	scB, err := f.reg.Issue(context.Background(), f.owner, b.ID)
	require.NoError(t, err)

	err = f.store.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		n, err := f.reg.RevokeForFiles(ctx, tx, []uuid.UUID{a.ID})
		assert.Equal(t, int64(1), n)
		return err
	})
	require.NoError(t, err)

	_, err = f.reg.Resolve(context.Background(), scA.Code)
	assert.True(t, errors.Is(err, apperrors.ErrCodeNotFound))
	_, err = f.reg.Resolve(context.Background(), scB.Code)
	assert.NoError(t, err)
}
