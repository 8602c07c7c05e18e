package errors

import (
	"errors"
	"fmt"
)

// Domain errors - Sentinel errors for use with errors.Is()
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource already exists")
	ErrValidation         = errors.New("validation error")
	ErrInvalidState       = errors.New("invalid state for operation")
	ErrNameConflict       = errors.New("name conflict")
	ErrCycleDetected      = errors.New("cycle detected")
	ErrParentStillTrashed = errors.New("parent still trashed")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrSizeMismatch       = errors.New("size mismatch")
	ErrCodeNotFound       = errors.New("share code not found")
	ErrMaxDepthExceeded   = errors.New("maximum tree depth exceeded")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrStorageUnavailable = errors.New("object storage unavailable")
)

// ErrCodeExpired also matches ErrCodeNotFound: an expired code is logically absent.
var ErrCodeExpired = fmt.Errorf("share code expired: %w", ErrCodeNotFound)

// Custom error type with context
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructors
func NotFound(msg string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: msg, Err: ErrNotFound}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Err: ErrUnauthorized}
}

func Forbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Err: ErrForbidden}
}

func BadRequest(msg string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: msg, Err: ErrBadRequest}
}

func Conflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Err: ErrConflict}
}

func Validation(msg string) *AppError {
	return &AppError{Code: "VALIDATION", Message: msg, Err: ErrValidation}
}

func InvalidState(msg string) *AppError {
	return &AppError{Code: "INVALID_STATE", Message: msg, Err: ErrInvalidState}
}

func NameConflict(msg string) *AppError {
	return &AppError{Code: "NAME_CONFLICT", Message: msg, Err: ErrNameConflict}
}

func CycleDetected(msg string) *AppError {
	return &AppError{Code: "CYCLE_DETECTED", Message: msg, Err: ErrCycleDetected}
}

func ParentStillTrashed(msg string) *AppError {
	return &AppError{Code: "PARENT_STILL_TRASHED", Message: msg, Err: ErrParentStillTrashed}
}

func QuotaExceeded(msg string) *AppError {
	return &AppError{Code: "QUOTA_EXCEEDED", Message: msg, Err: ErrQuotaExceeded}
}

func SizeMismatch(msg string) *AppError {
	return &AppError{Code: "SIZE_MISMATCH", Message: msg, Err: ErrSizeMismatch}
}

func CodeNotFound(msg string) *AppError {
	return &AppError{Code: "CODE_NOT_FOUND", Message: msg, Err: ErrCodeNotFound}
}

func CodeExpired(msg string) *AppError {
	return &AppError{Code: "CODE_EXPIRED", Message: msg, Err: ErrCodeExpired}
}

func MaxDepthExceeded(msg string) *AppError {
	return &AppError{Code: "MAX_DEPTH_EXCEEDED", Message: msg, Err: ErrMaxDepthExceeded}
}

func InvariantViolation(msg string) *AppError {
	return &AppError{Code: "INVARIANT_VIOLATION", Message: msg, Err: ErrInvariantViolation}
}

func StorageUnavailable(msg string, err error) *AppError {
	return &AppError{Code: "STORAGE_UNAVAILABLE", Message: msg, Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
}

func InternalServer(msg string, err error) *AppError {
	return &AppError{Code: "INTERNAL_SERVER_ERROR", Message: msg, Err: err}
}

// IsRetryable reports whether the caller may safely retry the failed operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsNotFound reports whether err is a plain NotFound (not a share-code miss).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
