// Package upload reconciles a finished object-storage write with the entry tree and the quota ledger.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"drive-service/internal/cleanup"
	"drive-service/internal/domain/entry"
	"drive-service/internal/domain/orphan"
	"drive-service/internal/entries"
	"drive-service/internal/quota"
	"drive-service/internal/repository"
	"drive-service/internal/storage"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	keyPrefix          = "users/"
	defaultContentType = "application/octet-stream"
	maxIdempotencyKey  = 128
)

// ObjectStore is the part of the storage collaborator upload completion talks to.
type ObjectStore interface {
	HeadObject(ctx context.Context, objectKey string) (*storage.ObjectMeta, error)
	PresignPut(ctx context.Context, objectKey, contentType string) (string, error)
	PresignedURLExpiry() time.Duration
}

// CompleteInput describes one finished upload. MimeType and Hash fall back to what the object store
// reports when empty.
type CompleteInput struct {
	OwnerID        uuid.UUID
	IdempotencyKey string
	ObjectKey      string
	DeclaredSize   int64
	Name           string
	ParentID       *uuid.UUID
	MimeType       string
	Hash           string
}

// Ticket is handed to the client before it uploads.
type Ticket struct {
	ObjectKey string
	URL       string
	ExpiresAt time.Time
}

type Completer struct {
	txm         repository.TxManager
	entries     *entries.Store
	ledger      *quota.Ledger
	cleanup     *cleanup.Queue
	objects     ObjectStore
	headTimeout time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// NewCompleter creates an upload completer. headTimeout bounds each object metadata lookup.
func NewCompleter(
	txm repository.TxManager,
	store *entries.Store,
	ledger *quota.Ledger,
	queue *cleanup.Queue,
	objects ObjectStore,
	headTimeout time.Duration,
	logger zerolog.Logger,
) *Completer {
	return &Completer{
		txm:         txm,
		entries:     store,
		ledger:      ledger,
		cleanup:     queue,
		objects:     objects,
		headTimeout: headTimeout,
		now:         time.Now,
		log:         logger.With().Str("component", "upload").Logger(),
	}
}

// ObjectKey is where ownerID's upload uploadID is stored.
func ObjectKey(ownerID, uploadID uuid.UUID) string {
	return keyPrefix + ownerID.String() + "/" + uploadID.String()
}

// checkKeyOwnership accepts only keys produced by ObjectKey for ownerID.
func checkKeyOwnership(ownerID uuid.UUID, objectKey string) error {
	prefix := keyPrefix + ownerID.String() + "/"
	if !strings.HasPrefix(objectKey, prefix) {
		return apperrors.Forbidden("object key is outside the caller's upload area")
	}
	if _, err := uuid.Parse(strings.TrimPrefix(objectKey, prefix)); err != nil {
		return apperrors.Validation("object key is malformed")
	}
	return nil
}

// PresignUpload allocates a fresh object key for ownerID and signs a PUT URL for it.
func (c *Completer) PresignUpload(ctx context.Context, ownerID uuid.UUID, contentType string) (*Ticket, error) {
	if contentType == "" {
		contentType = defaultContentType
	}
	key := ObjectKey(ownerID, uuid.New())

	url, err := c.objects.PresignPut(ctx, key, contentType)
	if err != nil {
		return nil, apperrors.StorageUnavailable("failed to sign upload URL", err)
	}
	return &Ticket{
		ObjectKey: key,
		URL:       url,
		ExpiresAt: c.now().UTC().Add(c.objects.PresignedURLExpiry()),
	}, nil
}

// Complete verifies the uploaded object and records it: quota is reserved and the file entry created
// in one transaction, reserve first. A size mismatch changes nothing. A quota rejection schedules
// the object for deletion. Retrying with the same idempotency key returns the original entry.
func (c *Completer) Complete(ctx context.Context, in CompleteInput) (*entry.Entry, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	if err := checkKeyOwnership(in.OwnerID, in.ObjectKey); err != nil {
		return nil, err
	}

	if existing, err := c.findCompleted(ctx, in); err != nil || existing != nil {
		return existing, err
	}

	meta, err := c.head(ctx, in.ObjectKey)
	if err != nil {
		return nil, err
	}
	if meta.Size != in.DeclaredSize {
		c.log.Warn().
			Str("owner_id", in.OwnerID.String()).
			Str("object_key", in.ObjectKey).
			Int64("declared", in.DeclaredSize).
			Int64("actual", meta.Size).
			Msg("upload size mismatch")
		return nil, apperrors.SizeMismatch(fmt.Sprintf("declared %d bytes but the object has %d", in.DeclaredSize, meta.Size))
	}

	fileInput := entry.CreateFileInput{
		OwnerID:        in.OwnerID,
		ParentID:       in.ParentID,
		Name:           in.Name,
		Size:           meta.Size,
		MimeType:       firstNonEmpty(in.MimeType, meta.ContentType, defaultContentType),
		Hash:           firstNonEmpty(in.Hash, meta.ETag, "unknown"),
		StorageKey:     in.ObjectKey,
		IdempotencyKey: in.IdempotencyKey,
	}

	var created *entry.Entry
	err = c.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockTree(ctx, in.OwnerID, false); err != nil {
			return err
		}
		// Holding the ledger row makes the idempotency re-check and the reserve one critical section.
		if _, err := c.ledger.Lock(ctx, tx, in.OwnerID); err != nil {
			return err
		}

		existing, err := tx.Entries().GetByIdempotencyKey(ctx, in.OwnerID, in.IdempotencyKey)
		if err == nil {
			if !sameObject(existing, in.ObjectKey) {
				return apperrors.Conflict("idempotency key was used for a different object")
			}
			created = existing
			return nil
		}
		if !apperrors.IsNotFound(err) {
			return err
		}
		if _, err := tx.Entries().GetByStorageKey(ctx, in.ObjectKey); err == nil {
			return apperrors.Conflict("object is already recorded as a file")
		} else if !apperrors.IsNotFound(err) {
			return err
		}

		if _, err := c.ledger.Reserve(ctx, tx, in.OwnerID, meta.Size); err != nil {
			return err
		}
		created, err = c.entries.CreateFile(ctx, tx, fileInput)
		return err
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrQuotaExceeded) {
			c.discard(ctx, in)
		}
		return nil, err
	}

	c.log.Info().
		Str("owner_id", in.OwnerID.String()).
		Str("entry_id", created.ID.String()).
		Int64("size", meta.Size).
		Msg("upload completed")
	return created, nil
}

func validate(in CompleteInput) error {
	if in.OwnerID == uuid.Nil {
		return apperrors.Validation("owner is required")
	}
	if strings.TrimSpace(in.IdempotencyKey) == "" || len(in.IdempotencyKey) > maxIdempotencyKey {
		return apperrors.Validation(fmt.Sprintf("idempotency key is required and at most %d characters", maxIdempotencyKey))
	}
	if in.DeclaredSize < 0 {
		return apperrors.Validation("declared size must not be negative")
	}
	return entry.ValidateName(in.Name)
}

// findCompleted answers a retry without touching object storage.
func (c *Completer) findCompleted(ctx context.Context, in CompleteInput) (*entry.Entry, error) {
	var existing *entry.Entry
	err := c.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		e, err := tx.Entries().GetByIdempotencyKey(ctx, in.OwnerID, in.IdempotencyKey)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return nil
			}
			return err
		}
		if !sameObject(e, in.ObjectKey) {
			return apperrors.Conflict("idempotency key was used for a different object")
		}
		existing = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// head looks up object metadata with a bounded wait. Only a definite answer from the store counts as
// missing; timeouts and other failures are retryable.
func (c *Completer) head(ctx context.Context, key string) (*storage.ObjectMeta, error) {
	headCtx, cancel := context.WithTimeout(ctx, c.headTimeout)
	defer cancel()

	meta, err := c.objects.HeadObject(headCtx, key)
	if err == nil {
		return meta, nil
	}
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, apperrors.NotFound("uploaded object not found")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.log.Warn().Err(err).Str("object_key", key).Msg("object metadata lookup failed")
	return nil, apperrors.StorageUnavailable("object storage did not confirm the upload", err)
}

// discard queues the rejected object for deletion unless an entry references it.
func (c *Completer) discard(ctx context.Context, in CompleteInput) {
	var jobs []uuid.UUID
	err := c.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.Entries().GetByStorageKey(ctx, in.ObjectKey); err == nil {
			return nil
		} else if !apperrors.IsNotFound(err) {
			return err
		}
		var err error
		jobs, err = c.cleanup.Schedule(ctx, tx, []string{in.ObjectKey}, orphan.ReasonQuotaRejected)
		return err
	})
	if err != nil {
		c.log.Error().Err(err).Str("object_key", in.ObjectKey).Msg("failed to schedule rejected upload for cleanup")
		return
	}

	c.log.Info().Str("owner_id", in.OwnerID.String()).Str("object_key", in.ObjectKey).Msg("upload rejected by quota, object scheduled for cleanup")
	c.cleanup.Process(ctx, jobs)
}

func sameObject(e *entry.Entry, objectKey string) bool {
	return e.StorageKey != nil && *e.StorageKey == objectKey
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
