package postgres

import (
	"errors"
	"fmt"
	"testing"

	apperrors "drive-service/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestUniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{"sibling name", constraintSiblingName, apperrors.ErrNameConflict},
		{"idempotency key", constraintIdempotency, apperrors.ErrConflict},
		{"storage key", constraintStorageKey, apperrors.ErrConflict},
		{"share file", constraintShareFileID, apperrors.ErrConflict},
		{"unknown index", "something_else", apperrors.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: tt.constraint})
			assert.True(t, errors.Is(uniqueViolation(err), tt.want))
		})
	}
}

func TestUniqueViolation_OtherErrors(t *testing.T) {
	assert.Nil(t, uniqueViolation(errors.New("boom")))
	assert.Nil(t, uniqueViolation(&pgconn.PgError{Code: "23503"}))
}
