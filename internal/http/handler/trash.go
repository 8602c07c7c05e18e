package handler

import (
	"context"
	"net/http"
	"time"

	"drive-service/internal/audit"
	"drive-service/internal/domain/entry"
	"drive-service/internal/trash"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type TrashHandler struct {
	trash TrashService
	audit Auditor
}

func NewTrashHandler(svc TrashService, auditor Auditor) *TrashHandler {
	return &TrashHandler{trash: svc, audit: auditor}
}

type TrashItemResponse struct {
	EntryResponse
	PurgeAt time.Time `json:"purge_at"`
}

type PurgeResponse struct {
	Entries    int   `json:"entries"`
	FreedBytes int64 `json:"freed_bytes"`
}

type stateChange func(ctx context.Context, ownerID, id uuid.UUID) (*entry.Entry, error)

func (h *TrashHandler) Trash(c echo.Context) error {
	return h.change(c, audit.ActionTrash, h.trash.Trash)
}

func (h *TrashHandler) Restore(c echo.Context) error {
	return h.change(c, audit.ActionRestore, h.trash.Restore)
}

func (h *TrashHandler) Archive(c echo.Context) error {
	return h.change(c, audit.ActionArchive, h.trash.Archive)
}

func (h *TrashHandler) Unarchive(c echo.Context) error {
	return h.change(c, audit.ActionUnarchive, h.trash.Unarchive)
}

func (h *TrashHandler) change(c echo.Context, action audit.Action, fn stateChange) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	e, err := fn(c.Request().Context(), ownerID, id)
	h.audit.Record(c, action, &id, err, nil)
	if err != nil {
		return err
	}
	return respondOK(c, toEntryResponse(e))
}

type removal func(ctx context.Context, ownerID, id uuid.UUID) (trash.PurgeResult, error)

func (h *TrashHandler) Purge(c echo.Context) error {
	return h.remove(c, audit.ActionPurge, h.trash.Purge)
}

func (h *TrashHandler) DeletePermanently(c echo.Context) error {
	return h.remove(c, audit.ActionDelete, h.trash.DeletePermanently)
}

func (h *TrashHandler) remove(c echo.Context, action audit.Action, fn removal) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	res, err := fn(c.Request().Context(), ownerID, id)
	h.audit.Record(c, action, &id, err, map[string]any{"entries": res.Entries, "freed_bytes": res.FreedBytes})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PurgeResponse{Entries: res.Entries, FreedBytes: res.FreedBytes})
}

func (h *TrashHandler) ListTrash(c echo.Context) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}

	items, err := h.trash.ListTrash(c.Request().Context(), ownerID)
	if err != nil {
		return err
	}

	out := make([]TrashItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, TrashItemResponse{EntryResponse: toEntryResponse(item.Entry), PurgeAt: item.PurgeAt})
	}
	return respondOK(c, out)
}
