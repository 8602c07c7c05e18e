package postgres

import (
	"errors"

	apperrors "drive-service/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// uniqueViolation maps a unique index violation to the domain error for that index.
// It returns nil when err is not a unique violation.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return nil
	}

	switch pgErr.ConstraintName {
	case constraintSiblingName:
		return apperrors.NameConflict(errSiblingNameTaken)
	case constraintIdempotency:
		return apperrors.Conflict(errIdempotencyTaken)
	case constraintStorageKey:
		return apperrors.Conflict(errStorageKeyTaken)
	case constraintShareFileID:
		return apperrors.Conflict(errShareFileTaken)
	default:
		return apperrors.Conflict(errDuplicateRow)
	}
}
