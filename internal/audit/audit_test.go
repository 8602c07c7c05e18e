package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"drive-service/internal/auth"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []*Event
}

func (s *captureSink) Write(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func newContext(userID *uuid.UUID) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/entries/x/trash", nil)
	req.Header.Set("User-Agent", "drive-test")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Response().Header().Set(echo.HeaderXRequestID, "req-1")
	if userID != nil {
		c.Set(auth.ContextKeyUserID, *userID)
	}
	return c
}

func TestRecorder_Record(t *testing.T) {
	sink := &captureSink{}
	r := NewRecorder(sink, zerolog.Nop())

	userID := uuid.New()
	entryID := uuid.New()
	r.Record(newContext(&userID), ActionTrash, &entryID, nil, map[string]any{"entries": 3, "share_code": "abc"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Flush(ctx))

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, ActionTrash, ev.Action)
	assert.Equal(t, StatusSuccess, ev.Status)
	assert.Equal(t, userID, *ev.ActorID)
	assert.Equal(t, entryID, *ev.ResourceID)
	assert.Equal(t, "req-1", ev.RequestID)
	assert.Equal(t, "drive-test", ev.UserAgent)
	assert.Equal(t, 3, ev.Metadata["entries"])
	assert.Equal(t, "[REDACTED]", ev.Metadata["share_code"])
}

func TestRecorder_RecordFailure(t *testing.T) {
	sink := &captureSink{}
	r := NewRecorder(sink, zerolog.Nop())

	r.Record(newContext(nil), ActionShareAccess, nil, apperrors.CodeExpired("share code expired"), nil)
	r.Record(newContext(nil), ActionRevoke, nil, apperrors.Forbidden("not yours"), nil)

	require.NoError(t, r.Flush(context.Background()))
	require.Len(t, sink.events, 2)

	byAction := map[Action]*Event{}
	for _, ev := range sink.events {
		byAction[ev.Action] = ev
	}
	assert.Equal(t, StatusFailure, byAction[ActionShareAccess].Status)
	assert.Nil(t, byAction[ActionShareAccess].ActorID)
	assert.Contains(t, byAction[ActionShareAccess].ErrorMessage, "expired")
	assert.Equal(t, StatusDenied, byAction[ActionRevoke].Status)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusSuccess, statusOf(nil))
	assert.Equal(t, StatusDenied, statusOf(apperrors.Unauthorized("no")))
	assert.Equal(t, StatusFailure, statusOf(errors.New("boom")))
}
