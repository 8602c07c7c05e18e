package http

import (
	"errors"
	"fmt"
	"net/http"

	"drive-service/internal/http/middleware"
	apperrors "drive-service/pkg/errors"
	"drive-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	retryAfterSeconds = "5"
	unknownRequestID  = "unknown"
)

// statusFor maps sentinel errors to HTTP status codes and public messages.
// ErrCodeExpired wraps ErrCodeNotFound, so it has to be checked first.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrCodeExpired):
		return http.StatusGone, "Share code expired"
	case errors.Is(err, apperrors.ErrCodeNotFound):
		return http.StatusNotFound, "Share code not found"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, "Bad request"
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, "Validation error"
	case errors.Is(err, apperrors.ErrNameConflict):
		return http.StatusConflict, "Name already taken"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "Resource already exists"
	case errors.Is(err, apperrors.ErrInvalidState):
		return http.StatusConflict, "Invalid state for operation"
	case errors.Is(err, apperrors.ErrCycleDetected):
		return http.StatusConflict, "Move would create a cycle"
	case errors.Is(err, apperrors.ErrParentStillTrashed):
		return http.StatusConflict, "Parent folder is in the trash"
	case errors.Is(err, apperrors.ErrQuotaExceeded):
		return http.StatusRequestEntityTooLarge, "Storage quota exceeded"
	case errors.Is(err, apperrors.ErrSizeMismatch):
		return http.StatusUnprocessableEntity, "Uploaded size does not match"
	case errors.Is(err, apperrors.ErrMaxDepthExceeded):
		return http.StatusUnprocessableEntity, "Folder tree too deep"
	case errors.Is(err, apperrors.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "Storage temporarily unavailable, retry later"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// NewErrorHandler returns the echo error handler. Handlers return domain errors unchanged and
// this is the only place they become HTTP responses.
func NewErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var code int
		var message string
		var errCode string

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			code = httpErr.Code
			message = fmt.Sprintf("%v", httpErr.Message)
		} else {
			code, message = statusFor(err)

			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				errCode = appErr.Code
				if code < http.StatusInternalServerError {
					message = appErr.Message
				}
			}
		}

		requestID := middleware.GetRequestID(c)
		if requestID == "" {
			requestID = unknownRequestID
		}

		event := log.Warn()
		if code >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.Str("error", logger.SanitizeLogMessage(err.Error())).
			Str("request_id", requestID).
			Int("status", code).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("request failed")

		if apperrors.IsRetryable(err) {
			c.Response().Header().Set("Retry-After", retryAfterSeconds)
		}

		body := map[string]interface{}{
			"error":      message,
			"request_id": requestID,
		}
		if errCode != "" {
			body["code"] = errCode
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to write error response")
		}
	}
}
