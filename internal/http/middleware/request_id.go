package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	// RequestIDHeader is the header name for request ID
	RequestIDHeader = echo.HeaderXRequestID
	// RequestIDContextKey is the context key for request ID
	RequestIDContextKey = "request_id"

	maxRequestIDLength = 128
)

// RequestID takes the caller's X-Request-ID or generates one, echoes it in the response and
// attaches a request-scoped logger to the request context for zerolog.Ctx.
func RequestID(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > maxRequestIDLength {
				requestID = uuid.New().String()
			}

			c.Set(RequestIDContextKey, requestID)
			c.Response().Header().Set(RequestIDHeader, requestID)

			reqLogger := logger.With().Str(RequestIDContextKey, requestID).Logger()
			req := c.Request()
			c.SetRequest(req.WithContext(reqLogger.WithContext(req.Context())))

			return next(c)
		}
	}
}

// GetRequestID extracts the request ID from the context
func GetRequestID(c echo.Context) string {
	if requestID, ok := c.Get(RequestIDContextKey).(string); ok {
		return requestID
	}
	return ""
}
