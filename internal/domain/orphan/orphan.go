package orphan

import (
	"time"

	"github.com/google/uuid"
)

type Reason string

const (
	ReasonPurged        Reason = "purged"
	ReasonDeleted       Reason = "deleted"
	ReasonQuotaRejected Reason = "quota_rejected"
)

// Object is a pending deletion of an object-storage key no entry references any more.
type Object struct {
	ID            uuid.UUID
	StorageKey    string
	Reason        Reason
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	NextAttemptAt time.Time
}
