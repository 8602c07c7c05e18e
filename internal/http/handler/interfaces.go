package handler

import (
	"context"
	"time"

	"drive-service/internal/audit"
	"drive-service/internal/domain/entry"
	"drive-service/internal/domain/quota"
	"drive-service/internal/domain/share"
	"drive-service/internal/trash"
	"drive-service/internal/tree"
	"drive-service/internal/upload"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Consumer-side interfaces defined by handlers
// Each interface contains only the methods needed by the specific handler

// EntryHandler interfaces
type EntryService interface {
	CreateDirectory(ctx context.Context, in entry.CreateDirectoryInput) (*entry.Entry, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*entry.Entry, error)
	Rename(ctx context.Context, ownerID, id uuid.UUID, newName string) (*entry.Entry, error)
	Move(ctx context.Context, ownerID, id, newParentID uuid.UUID) (*entry.Entry, error)
	ListChildren(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID, opts entry.ListOptions) ([]*entry.Entry, error)
	GetRecursive(ctx context.Context, ownerID uuid.UUID, rootID *uuid.UUID, opts entry.ListOptions) (*tree.Node[*entry.Entry], error)
}

// TrashHandler interfaces
type TrashService interface {
	Trash(ctx context.Context, ownerID, id uuid.UUID) (*entry.Entry, error)
	Restore(ctx context.Context, ownerID, id uuid.UUID) (*entry.Entry, error)
	Archive(ctx context.Context, ownerID, id uuid.UUID) (*entry.Entry, error)
	Unarchive(ctx context.Context, ownerID, id uuid.UUID) (*entry.Entry, error)
	Purge(ctx context.Context, ownerID, id uuid.UUID) (trash.PurgeResult, error)
	DeletePermanently(ctx context.Context, ownerID, id uuid.UUID) (trash.PurgeResult, error)
	ListTrash(ctx context.Context, ownerID uuid.UUID) ([]trash.Item, error)
}

// ShareHandler interfaces
type ShareService interface {
	Issue(ctx context.Context, ownerID, fileID uuid.UUID) (*share.ShareCode, error)
	Current(ctx context.Context, ownerID, fileID uuid.UUID) (*share.ShareCode, error)
	Revoke(ctx context.Context, ownerID uuid.UUID, code string) error
	ResolveFile(ctx context.Context, code string) (*entry.Entry, error)
}

type DownloadPresigner interface {
	PresignGet(ctx context.Context, objectKey, fileName string) (string, error)
	PresignedURLExpiry() time.Duration
}

type URLCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, url string, expiry time.Time) error
	Delete(ctx context.Context, key string) error
}

// UploadHandler interfaces
type UploadService interface {
	PresignUpload(ctx context.Context, ownerID uuid.UUID, contentType string) (*upload.Ticket, error)
	Complete(ctx context.Context, in upload.CompleteInput) (*entry.Entry, error)
}

// UsageHandler interfaces
type UsageService interface {
	GetUsage(ctx context.Context, userID uuid.UUID) (*quota.Usage, error)
}

// Auditor records lifecycle and sharing actions
type Auditor interface {
	Record(c echo.Context, action audit.Action, resourceID *uuid.UUID, cause error, metadata map[string]any)
}
