// Package audit records who changed the lifecycle of an entry or touched a share code.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"drive-service/internal/auth"
	apperrors "drive-service/pkg/errors"
	"drive-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Action represents the action being performed
type Action string

const (
	ActionTrash       Action = "trash"
	ActionRestore     Action = "restore"
	ActionArchive     Action = "archive"
	ActionUnarchive   Action = "unarchive"
	ActionPurge       Action = "purge"
	ActionDelete      Action = "delete"
	ActionShare       Action = "share"
	ActionRevoke      Action = "revoke"
	ActionShareAccess Action = "share_access"
)

// Status represents the outcome of an action
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusDenied  Status = "denied"
)

const writeTimeout = 2 * time.Second

// Event represents an audit event
type Event struct {
	ID           uuid.UUID
	ActorID      *uuid.UUID
	ResourceID   *uuid.UUID
	Action       Action
	Status       Status
	IPAddress    string
	UserAgent    string
	RequestID    string
	Metadata     map[string]any
	ErrorMessage string
	CreatedAt    time.Time
}

// Sink persists events.
type Sink interface {
	Write(ctx context.Context, event *Event) error
}

// PostgresSink appends events to the audit_events table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Write(ctx context.Context, event *Event) error {
	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		if metadataJSON, err = json.Marshal(event.Metadata); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO audit_events (
			id, actor_id, resource_id, action, status, ip_address, user_agent,
			request_id, metadata, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.pool.Exec(ctx, query,
		event.ID,
		event.ActorID,
		event.ResourceID,
		event.Action,
		event.Status,
		event.IPAddress,
		event.UserAgent,
		event.RequestID,
		metadataJSON,
		event.ErrorMessage,
		event.CreatedAt,
	)
	return err
}

// LogSink writes events as structured log lines. Used when there is no database.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Write(ctx context.Context, event *Event) error {
	ev := s.log.Info().
		Str("event_id", event.ID.String()).
		Str("action", string(event.Action)).
		Str("status", string(event.Status)).
		Str("request_id", event.RequestID).
		Str("ip", event.IPAddress)
	if event.ActorID != nil {
		ev = ev.Str("actor_id", event.ActorID.String())
	}
	if event.ResourceID != nil {
		ev = ev.Str("resource_id", event.ResourceID.String())
	}
	if event.ErrorMessage != "" {
		ev = ev.Str("error", event.ErrorMessage)
	}
	ev.Fields(event.Metadata).Msg("audit event")
	return nil
}

// Recorder builds events from requests and hands them to its sink off the request path.
type Recorder struct {
	sink Sink
	log  zerolog.Logger
	wg   sync.WaitGroup
}

func NewRecorder(sink Sink, log zerolog.Logger) *Recorder {
	return &Recorder{
		sink: sink,
		log:  log.With().Str("component", "audit").Logger(),
	}
}

// Record writes one event for the action that just ran in c. A nil cause is a success.
func (r *Recorder) Record(c echo.Context, action Action, resourceID *uuid.UUID, cause error, metadata map[string]any) {
	event := &Event{
		ID:         uuid.New(),
		ResourceID: resourceID,
		Action:     action,
		Status:     statusOf(cause),
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
		RequestID:  c.Response().Header().Get(echo.HeaderXRequestID),
		CreatedAt:  time.Now().UTC(),
	}
	if metadata != nil {
		event.Metadata = logger.SanitizeMap(metadata)
	}
	if cause != nil {
		event.ErrorMessage = logger.SanitizeLogMessage(cause.Error())
	}
	if userID, err := auth.GetUserID(c); err == nil {
		event.ActorID = &userID
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := r.sink.Write(ctx, event); err != nil {
			r.log.Error().Err(err).Str("action", string(event.Action)).Msg("audit write failed")
		}
	}()
}

// Flush waits for pending writes or for ctx to end.
func (r *Recorder) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, apperrors.ErrUnauthorized), errors.Is(err, apperrors.ErrForbidden):
		return StatusDenied
	default:
		return StatusFailure
	}
}
