package upload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"drive-service/internal/billing"
	"drive-service/internal/cleanup"
	"drive-service/internal/domain/entry"
	domainquota "drive-service/internal/domain/quota"
	"drive-service/internal/entries"
	"drive-service/internal/quota"
	"drive-service/internal/repository/memory"
	"drive-service/internal/storage/storagetest"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	objects   *storagetest.ObjectStore
	entries   *entries.Store
	ledger    *quota.Ledger
	completer *Completer
	owner     uuid.UUID
}

func newFixture(t *testing.T, quotaBytes int64) *fixture {
	t.Helper()
	store := memory.New()
	log := zerolog.Nop()
	f := &fixture{objects: storagetest.New(), owner: uuid.New()}
	f.entries = entries.NewStore(store, 16, log)
	f.ledger = quota.NewLedger(store, billing.NewStaticPlans(domainquota.Plan{ID: "free", QuotaBytes: quotaBytes}), log)
	queue := cleanup.NewQueue(store, f.objects, log)
	f.completer = NewCompleter(store, f.entries, f.ledger, queue, f.objects, 50*time.Millisecond, log)
	return f
}

func (f *fixture) upload(size int64) string {
	key := ObjectKey(f.owner, uuid.New())
	f.objects.Put(key, size)
	return key
}

func (f *fixture) input(key string, size int64, name string) CompleteInput {
	return CompleteInput{
		OwnerID:        f.owner,
		IdempotencyKey: "idem-" + key,
		ObjectKey:      key,
		DeclaredSize:   size,
		Name:           name,
	}
}

func TestComplete_CreatesEntryAndReserves(t *testing.T) {
	f := newFixture(t, 1000)
	key := f.upload(150)

	e, err := f.completer.Complete(context.Background(), f.input(key, 150, "photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", e.Name)
	assert.Equal(t, int64(150), e.SizeBytes())
	assert.Equal(t, key, *e.StorageKey)
	assert.Equal(t, "application/octet-stream", *e.MimeType)

	u, err := f.ledger.GetUsage(context.Background(), f.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(150), u.UsedBytes)
}

func TestComplete_RetryIsIdempotent(t *testing.T) {
	f := newFixture(t, 1000)
	key := f.upload(100)
	in := f.input(key, 100, "a.txt")

	first, err := f.completer.Complete(context.Background(), in)
	require.NoError(t, err)
	f.objects.FailHead(errors.New("should not be called"))
	second, err := f.completer.Complete(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "a.txt", second.Name, "no suffix growth on retry")
	u, err := f.ledger.GetUsage(context.Background(), f.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(100), u.UsedBytes)

	other := f.upload(5)
	in.ObjectKey = other
	_, err = f.completer.Complete(context.Background(), in)
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestComplete_QuotaExceededSchedulesCleanup(t *testing.T) {
	f := newFixture(t, 1000)
	_, err := f.ledger.Reserve(context.Background(), nil, f.owner, 900)
	require.NoError(t, err)
	key := f.upload(150)

	_, err = f.completer.Complete(context.Background(), f.input(key, 150, "big.bin"))
	assert.True(t, errors.Is(err, apperrors.ErrQuotaExceeded))
	assert.False(t, errors.Is(err, apperrors.ErrSizeMismatch))

	children, err := f.entries.ListChildren(context.Background(), f.owner, nil, entry.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, children)
	assert.Equal(t, []string{key}, f.objects.Deleted())

	u, err := f.ledger.GetUsage(context.Background(), f.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(900), u.UsedBytes)
}

func TestComplete_SizeMismatch(t *testing.T) {
	f := newFixture(t, 1000)
	key := f.upload(200)

	_, err := f.completer.Complete(context.Background(), f.input(key, 100, "liar.bin"))
	assert.True(t, errors.Is(err, apperrors.ErrSizeMismatch))

	u, err := f.ledger.GetUsage(context.Background(), f.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.UsedBytes)
	assert.True(t, f.objects.Has(key), "object is kept so the client can retry with the right size")
}

func TestComplete_ObjectMissing(t *testing.T) {
	f := newFixture(t, 1000)
	key := ObjectKey(f.owner, uuid.New())

	_, err := f.completer.Complete(context.Background(), f.input(key, 10, "ghost"))
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestComplete_StorageTimeoutIsRetryable(t *testing.T) {
	f := newFixture(t, 1000)
	key := f.upload(10)
	f.objects.SlowHead(time.Second)

	_, err := f.completer.Complete(context.Background(), f.input(key, 10, "slow"))
	assert.True(t, apperrors.IsRetryable(err))
	assert.False(t, errors.Is(err, apperrors.ErrNotFound), "a timeout is not proof the object is missing")

	f.objects.SlowHead(0)
	e, err := f.completer.Complete(context.Background(), f.input(key, 10, "slow"))
	require.NoError(t, err)
	assert.Equal(t, "slow", e.Name)
}

func TestComplete_StorageErrorIsRetryable(t *testing.T) {
	f := newFixture(t, 1000)
	key := f.upload(10)
	f.objects.FailHead(errors.New("503"))

	_, err := f.completer.Complete(context.Background(), f.input(key, 10, "x"))
	assert.True(t, errors.Is(err, apperrors.ErrStorageUnavailable))
}

func TestComplete_KeyOwnership(t *testing.T) {
	f := newFixture(t, 1000)
	foreign := ObjectKey(uuid.New(), uuid.New())
	f.objects.Put(foreign, 10)

	_, err := f.completer.Complete(context.Background(), f.input(foreign, 10, "x"))
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = f.completer.Complete(context.Background(), f.input("users/"+f.owner.String()+"/../x", 10, "x"))
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestComplete_Validation(t *testing.T) {
	f := newFixture(t, 1000)
	key := f.upload(10)

	in := f.input(key, 10, "x")
	in.IdempotencyKey = ""
	_, err := f.completer.Complete(context.Background(), in)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	in = f.input(key, -1, "x")
	_, err = f.completer.Complete(context.Background(), in)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	in = f.input(key, 10, "")
	_, err = f.completer.Complete(context.Background(), in)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestComplete_ConcurrentUploadsNearLimit(t *testing.T) {
	f := newFixture(t, 1000)
	keys := []string{f.upload(600), f.upload(700)}
	sizes := []int64{600, 700}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.completer.Complete(context.Background(), f.input(keys[i], sizes[i], "f.bin"))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.NoError(t, f.ledger.Verify(context.Background(), f.owner))
}

func TestPresignUpload(t *testing.T) {
	f := newFixture(t, 1000)

	ticket, err := f.completer.PresignUpload(context.Background(), f.owner, "image/png")
	require.NoError(t, err)
	assert.NoError(t, checkKeyOwnership(f.owner, ticket.ObjectKey))
	assert.Contains(t, ticket.URL, ticket.ObjectKey)
	assert.True(t, ticket.ExpiresAt.After(time.Now()))
}
