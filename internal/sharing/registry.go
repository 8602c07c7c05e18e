// Package sharing issues and resolves public share codes. A file has at most one live code; issuing
// again replaces it.
package sharing

import (
	"context"
	"fmt"
	"time"

	"drive-service/internal/domain/entry"
	"drive-service/internal/domain/share"
	"drive-service/internal/entries"
	"drive-service/internal/repository"
	apperrors "drive-service/pkg/errors"
	"drive-service/pkg/token"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxGenerateAttempts = 5
	logPrefixLength     = 4
)

type Registry struct {
	txm      repository.TxManager
	ttl      time.Duration
	length   int
	now      func() time.Time
	generate func(length int) (string, error)
	log      zerolog.Logger
}

// NewRegistry creates a share code registry issuing codes of length characters valid for ttl
func NewRegistry(txm repository.TxManager, ttl time.Duration, length int, logger zerolog.Logger) *Registry {
	return &Registry{
		txm:      txm,
		ttl:      ttl,
		length:   length,
		now:      time.Now,
		generate: token.Generate,
		log:      logger.With().Str("component", "sharing").Logger(),
	}
}

// WithClock replaces the time source, for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Issue creates a fresh code for fileID, deleting any previous one in the same transaction.
func (r *Registry) Issue(ctx context.Context, ownerID, fileID uuid.UUID) (*share.ShareCode, error) {
	var issued *share.ShareCode
	err := r.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.LockTree(ctx, ownerID, false); err != nil {
			return err
		}
		// The row lock on the file serializes concurrent issues for it.
		e, err := entries.Owned(ctx, tx, ownerID, fileID)
		if err != nil {
			return err
		}
		if e.IsDirectory {
			return apperrors.Validation("only files can be shared")
		}
		if !e.IsActive() {
			return apperrors.InvalidState("only active files can be shared")
		}

		if _, err := tx.ShareCodes().DeleteByFileIDs(ctx, []uuid.UUID{fileID}); err != nil {
			return err
		}

		now := r.now().UTC()
		for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
			code, err := r.generate(r.length)
			if err != nil {
				return apperrors.InternalServer("failed to generate share code", err)
			}
			sc := &share.ShareCode{
				Code:      code,
				FileID:    fileID,
				OwnerID:   ownerID,
				ExpiresAt: now.Add(r.ttl),
				CreatedAt: now,
			}
			inserted, err := tx.ShareCodes().Insert(ctx, sc)
			if err != nil {
				return err
			}
			if inserted {
				issued = sc
				return nil
			}
			r.log.Warn().Int("attempt", attempt+1).Msg("share code collision, regenerating")
		}
		return apperrors.InternalServer("failed to generate share code",
			fmt.Errorf("%d consecutive collisions", maxGenerateAttempts))
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("file_id", fileID.String()).
		Str("code_prefix", token.ExtractPrefix(issued.Code, logPrefixLength)).
		Time("expires_at", issued.ExpiresAt).
		Msg("share code issued")
	return issued, nil
}

// Resolve returns the file id behind code.
func (r *Registry) Resolve(ctx context.Context, code string) (uuid.UUID, error) {
	e, err := r.ResolveFile(ctx, code)
	if err != nil {
		return uuid.Nil, err
	}
	return e.ID, nil
}

// ResolveFile returns the file behind code. Expiry is checked here even when the sweep has not yet
// removed the code. A code whose file is no longer active resolves as not found.
func (r *Registry) ResolveFile(ctx context.Context, code string) (*entry.Entry, error) {
	if !token.IsWellFormed(code, r.length) {
		return nil, apperrors.CodeNotFound("share code not found")
	}

	var file *entry.Entry
	err := r.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		sc, err := tx.ShareCodes().GetByCode(ctx, code)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.CodeNotFound("share code not found")
			}
			return err
		}
		if sc.IsExpired(r.now()) {
			return apperrors.CodeExpired("share code expired")
		}

		e, err := tx.Entries().Get(ctx, sc.FileID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.CodeNotFound("shared file no longer exists")
			}
			return err
		}
		if !e.IsActive() || e.IsDirectory {
			return apperrors.CodeNotFound("shared file is not available")
		}
		file = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Current returns the live code for a file the caller owns.
func (r *Registry) Current(ctx context.Context, ownerID, fileID uuid.UUID) (*share.ShareCode, error) {
	var current *share.ShareCode
	err := r.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		e, err := tx.Entries().Get(ctx, fileID)
		if err != nil {
			return err
		}
		if e.OwnerID != ownerID {
			return apperrors.Forbidden("entry belongs to another user")
		}

		sc, err := tx.ShareCodes().GetByFileID(ctx, fileID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.CodeNotFound("file has no share code")
			}
			return err
		}
		if sc.IsExpired(r.now()) {
			return apperrors.CodeExpired("share code expired")
		}
		current = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// Revoke deletes code. Only the owner of the shared file may revoke it.
func (r *Registry) Revoke(ctx context.Context, ownerID uuid.UUID, code string) error {
	return r.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		sc, err := tx.ShareCodes().GetByCode(ctx, code)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.CodeNotFound("share code not found")
			}
			return err
		}
		if sc.OwnerID != ownerID {
			return apperrors.Forbidden("share code belongs to another user")
		}
		_, err = tx.ShareCodes().DeleteByCode(ctx, code)
		return err
	})
}

// RevokeForFiles deletes the codes of fileIDs inside tx. Trash, archive and delete call it.
func (r *Registry) RevokeForFiles(ctx context.Context, tx repository.Tx, fileIDs []uuid.UUID) (int64, error) {
	if len(fileIDs) == 0 {
		return 0, nil
	}
	return tx.ShareCodes().DeleteByFileIDs(ctx, fileIDs)
}

// SweepExpired deletes up to limit expired codes.
func (r *Registry) SweepExpired(ctx context.Context, limit int) (int64, error) {
	var n int64
	err := r.txm.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		n, err = tx.ShareCodes().DeleteExpired(ctx, r.now().UTC(), limit)
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Info().Int64("count", n).Msg("expired share codes swept")
	}
	return n, nil
}
