package entry

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusTrashed  Status = "TRASHED"
	StatusArchived Status = "ARCHIVED"
)

const (
	MaxNameLength = 64
	RootName      = "root"

	asciiControlEnd = 0x20
	asciiDelete     = 0x7f
)

// Entry is a file or directory node in one owner's tree.
type Entry struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	ParentID       *uuid.UUID
	Name           string
	IsDirectory    bool
	Size           *int64
	MimeType       *string
	Hash           *string
	StorageKey     *string
	Status         Status
	BatchID        *uuid.UUID
	IdempotencyKey *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	TrashedAt      *time.Time
	ArchivedAt     *time.Time
}

type CreateFileInput struct {
	OwnerID        uuid.UUID
	ParentID       *uuid.UUID
	Name           string
	Size           int64
	MimeType       string
	Hash           string
	StorageKey     string
	IdempotencyKey string
}

type CreateDirectoryInput struct {
	OwnerID  uuid.UUID
	ParentID *uuid.UUID
	Name     string
}

type ListOptions struct {
	IncludeTrashed  bool
	IncludeArchived bool
}

func (e *Entry) IsRoot() bool {
	return e.ParentID == nil
}

func (e *Entry) IsActive() bool {
	return e.Status == StatusActive
}

// SizeBytes is zero for directories.
func (e *Entry) SizeBytes() int64 {
	if e.Size == nil {
		return 0
	}
	return *e.Size
}

// IsBatchRoot reports whether e is the entry a trash or archive operation was invoked on.
func (e *Entry) IsBatchRoot() bool {
	return e.BatchID != nil && *e.BatchID == e.ID
}

func (e *Entry) InBatch(batchID uuid.UUID) bool {
	return e.BatchID != nil && *e.BatchID == batchID
}

func (e *Entry) Clone() *Entry {
	c := *e
	c.ParentID = clonePtr(e.ParentID)
	c.Size = clonePtr(e.Size)
	c.MimeType = clonePtr(e.MimeType)
	c.Hash = clonePtr(e.Hash)
	c.StorageKey = clonePtr(e.StorageKey)
	c.BatchID = clonePtr(e.BatchID)
	c.IdempotencyKey = clonePtr(e.IdempotencyKey)
	c.TrashedAt = clonePtr(e.TrashedAt)
	c.ArchivedAt = clonePtr(e.ArchivedAt)
	return &c
}

// CheckShape enforces that directory content fields are null and file content fields are set.
func (e *Entry) CheckShape() error {
	if e.IsDirectory {
		if e.Size != nil || e.MimeType != nil || e.Hash != nil || e.StorageKey != nil {
			return apperrors.InvariantViolation("directory carries file content fields")
		}
		return nil
	}
	if e.Size == nil || e.MimeType == nil || e.Hash == nil || e.StorageKey == nil {
		return apperrors.InvariantViolation("file is missing content fields")
	}
	if *e.Size < 0 {
		return apperrors.InvariantViolation("file size is negative")
	}
	return nil
}

// ValidateName checks a display name before it reaches the store. The rules match the
// display_name request tag.
func ValidateName(name string) error {
	if !utf8.ValidString(name) {
		return apperrors.Validation("name is not valid UTF-8")
	}
	if strings.TrimSpace(name) == "" {
		return apperrors.Validation("name must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return apperrors.Validation("name must be at most 64 characters")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return apperrors.Validation("name contains invalid characters")
	}
	for _, r := range name {
		if r < asciiControlEnd || r == asciiDelete {
			return apperrors.Validation("name contains control characters")
		}
	}
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
