package handler

import (
	"net/http"
	"time"

	"drive-service/internal/domain/entry"
	"drive-service/internal/domain/quota"
	"drive-service/internal/tree"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type EntryResponse struct {
	ID          uuid.UUID    `json:"id"`
	ParentID    *uuid.UUID   `json:"parent_id"`
	Name        string       `json:"name"`
	IsDirectory bool         `json:"is_directory"`
	Size        *int64       `json:"size,omitempty"`
	MimeType    *string      `json:"mime_type,omitempty"`
	Hash        *string      `json:"hash,omitempty"`
	Status      entry.Status `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	TrashedAt   *time.Time   `json:"trashed_at,omitempty"`
	ArchivedAt  *time.Time   `json:"archived_at,omitempty"`
}

type TreeResponse struct {
	EntryResponse
	Children []TreeResponse `json:"children,omitempty"`
}

type UsageResponse struct {
	PlanID      string `json:"plan_id"`
	UsedBytes   int64  `json:"used_bytes"`
	QuotaBytes  int64  `json:"quota_bytes"`
	Available   int64  `json:"available_bytes"`
	IsNearLimit bool   `json:"is_near_limit"`
}

// Storage keys stay server-side.
func toEntryResponse(e *entry.Entry) EntryResponse {
	return EntryResponse{
		ID:          e.ID,
		ParentID:    e.ParentID,
		Name:        e.Name,
		IsDirectory: e.IsDirectory,
		Size:        e.Size,
		MimeType:    e.MimeType,
		Hash:        e.Hash,
		Status:      e.Status,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		TrashedAt:   e.TrashedAt,
		ArchivedAt:  e.ArchivedAt,
	}
}

func toEntryResponses(es []*entry.Entry) []EntryResponse {
	out := make([]EntryResponse, 0, len(es))
	for _, e := range es {
		out = append(out, toEntryResponse(e))
	}
	return out
}

func toTreeResponse(n *tree.Node[*entry.Entry]) TreeResponse {
	resp := TreeResponse{EntryResponse: toEntryResponse(n.Value)}
	for _, child := range n.Children {
		resp.Children = append(resp.Children, toTreeResponse(child))
	}
	return resp
}

func toUsageResponse(u *quota.Usage) UsageResponse {
	return UsageResponse{
		PlanID:      u.PlanID,
		UsedBytes:   u.UsedBytes,
		QuotaBytes:  u.QuotaBytes,
		Available:   u.Available(),
		IsNearLimit: u.IsNearLimit(),
	}
}

func respondOK(c echo.Context, body any) error {
	return c.JSON(http.StatusOK, body)
}
