package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "k8Jd2mQz9XwL4pRt7vBn1cYh6sFg3aEu"

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService(testSecret, time.Hour)
	user := uuid.New()

	token, err := svc.Generate(user)
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user, claims.UserID)

	_, err = NewJWTService("another-secret-another-secret-xx", time.Hour).Verify(token)
	assert.Error(t, err)
}

func TestJWT_Expired(t *testing.T) {
	svc := NewJWTService(testSecret, -time.Minute)
	token, err := svc.Generate(uuid.New())
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.Error(t, err)
}

func TestRequireJWT(t *testing.T) {
	svc := NewJWTService(testSecret, time.Hour)
	m := NewMiddleware(svc)
	user := uuid.New()
	token, err := svc.Generate(user)
	require.NoError(t, err)

	var seen uuid.UUID
	handler := m.RequireJWT()(func(c echo.Context) error {
		id, err := GetUserID(c)
		if err != nil {
			return err
		}
		seen = id
		return c.NoContent(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusNoContent},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()

			require.NoError(t, handler(e.NewContext(req, rec)))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, user, seen)
}

func TestGetUserID_Unauthenticated(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, err := GetUserID(c)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}
