package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeExpiredMatchesCodeNotFound(t *testing.T) {
	err := CodeExpired("share code expired")

	assert.True(t, errors.Is(err, ErrCodeExpired))
	assert.True(t, errors.Is(err, ErrCodeNotFound))
	assert.False(t, errors.Is(CodeNotFound("missing"), ErrCodeExpired))
}

func TestAppErrorUnwrapsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("move entry: %w", CycleDetected("cannot move a folder into itself"))

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CYCLE_DETECTED", appErr.Code)
	assert.True(t, errors.Is(err, ErrCycleDetected))
}

func TestStorageUnavailableIsRetryable(t *testing.T) {
	err := StorageUnavailable("head object", errors.New("context deadline exceeded"))

	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(NotFound("object not found")))
	assert.Contains(t, err.Error(), "context deadline exceeded")
}
