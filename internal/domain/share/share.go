package share

import (
	"time"

	"github.com/google/uuid"
)

// ShareCode grants anonymous read access to exactly one file until ExpiresAt.
type ShareCode struct {
	Code      string
	FileID    uuid.UUID
	OwnerID   uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (s *ShareCode) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
