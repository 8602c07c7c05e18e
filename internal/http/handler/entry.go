package handler

import (
	"net/http"
	"strings"

	"drive-service/internal/domain/entry"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type EntryHandler struct {
	entries EntryService
	cache   URLCache
	log     zerolog.Logger
}

func NewEntryHandler(entries EntryService, cache URLCache, logger zerolog.Logger) *EntryHandler {
	return &EntryHandler{
		entries: entries,
		cache:   cache,
		log:     logger.With().Str("component", "entry_handler").Logger(),
	}
}

type CreateFolderRequest struct {
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
	Name     string  `json:"name" validate:"required,display_name"`
}

type RenameRequest struct {
	Name string `json:"name" validate:"required,display_name"`
}

type MoveRequest struct {
	ParentID string `json:"parent_id" validate:"required,uuid"`
}

func (h *EntryHandler) CreateFolder(c echo.Context) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}

	var req CreateFolderRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}
	parentID, err := optionalID(req.ParentID)
	if err != nil {
		return err
	}

	created, err := h.entries.CreateDirectory(c.Request().Context(), entry.CreateDirectoryInput{
		OwnerID:  ownerID,
		ParentID: parentID,
		Name:     strings.TrimSpace(req.Name),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toEntryResponse(created))
}

func (h *EntryHandler) GetEntry(c echo.Context) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	e, err := h.entries.Get(c.Request().Context(), ownerID, id)
	if err != nil {
		return err
	}
	return respondOK(c, toEntryResponse(e))
}

// ListRootChildren and ListChildren share one implementation; the root has no id in the URL.
func (h *EntryHandler) ListRootChildren(c echo.Context) error {
	return h.listChildren(c, nil)
}

func (h *EntryHandler) ListChildren(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	return h.listChildren(c, &id)
}

func (h *EntryHandler) listChildren(c echo.Context, parentID *uuid.UUID) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}
	opts, err := listOptions(c)
	if err != nil {
		return err
	}

	children, err := h.entries.ListChildren(c.Request().Context(), ownerID, parentID, opts)
	if err != nil {
		return err
	}
	return respondOK(c, toEntryResponses(children))
}

func (h *EntryHandler) GetRootTree(c echo.Context) error {
	return h.getTree(c, nil)
}

func (h *EntryHandler) GetTree(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	return h.getTree(c, &id)
}

func (h *EntryHandler) getTree(c echo.Context, rootID *uuid.UUID) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}
	opts, err := listOptions(c)
	if err != nil {
		return err
	}

	root, err := h.entries.GetRecursive(c.Request().Context(), ownerID, rootID, opts)
	if err != nil {
		return err
	}
	return respondOK(c, toTreeResponse(root))
}

func (h *EntryHandler) Rename(c echo.Context) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req RenameRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	renamed, err := h.entries.Rename(ctx, ownerID, id, strings.TrimSpace(req.Name))
	if err != nil {
		return err
	}

	// Cached download URLs carry the old name in their content disposition.
	if !renamed.IsDirectory {
		if err := h.cache.Delete(ctx, downloadCacheKeyPrefix+id.String()); err != nil {
			h.log.Warn().Err(err).Str("file_id", id.String()).Msg("failed to drop cached download url")
		}
	}
	return respondOK(c, toEntryResponse(renamed))
}

func (h *EntryHandler) Move(c echo.Context) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req MoveRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}
	parentID, err := optionalID(&req.ParentID)
	if err != nil {
		return err
	}

	moved, err := h.entries.Move(c.Request().Context(), ownerID, id, *parentID)
	if err != nil {
		return err
	}
	return respondOK(c, toEntryResponse(moved))
}
