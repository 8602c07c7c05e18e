package handler

import (
	"net/http"
	"strings"
	"time"

	"drive-service/internal/upload"

	"github.com/labstack/echo/v4"
)

type UploadHandler struct {
	uploads UploadService
}

func NewUploadHandler(uploads UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

type PresignUploadRequest struct {
	ContentType string `json:"content_type" validate:"omitempty,content_type"`
}

type PresignUploadResponse struct {
	ObjectKey string    `json:"object_key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CompleteUploadRequest struct {
	IdempotencyKey string  `json:"idempotency_key" validate:"required,max=128"`
	ObjectKey      string  `json:"object_key" validate:"required"`
	Size           int64   `json:"size" validate:"gte=0"`
	Name           string  `json:"name" validate:"required,display_name"`
	ParentID       *string `json:"parent_id" validate:"omitempty,uuid"`
	MimeType       string  `json:"mime_type" validate:"omitempty,content_type"`
	Hash           string  `json:"hash" validate:"omitempty,max=128"`
}

func (h *UploadHandler) Presign(c echo.Context) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}

	var req PresignUploadRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	ticket, err := h.uploads.PresignUpload(c.Request().Context(), ownerID, strings.TrimSpace(req.ContentType))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, PresignUploadResponse{
		ObjectKey: ticket.ObjectKey,
		UploadURL: ticket.URL,
		ExpiresAt: ticket.ExpiresAt,
	})
}

// Complete is safe to retry with the same idempotency key; a retry returns the entry created first.
func (h *UploadHandler) Complete(c echo.Context) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}

	var req CompleteUploadRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}
	parentID, err := optionalID(req.ParentID)
	if err != nil {
		return err
	}

	created, err := h.uploads.Complete(c.Request().Context(), upload.CompleteInput{
		OwnerID:        ownerID,
		IdempotencyKey: req.IdempotencyKey,
		ObjectKey:      req.ObjectKey,
		DeclaredSize:   req.Size,
		Name:           strings.TrimSpace(req.Name),
		ParentID:       parentID,
		MimeType:       strings.TrimSpace(req.MimeType),
		Hash:           req.Hash,
	})
	if err != nil {
		return err
	}

	return respondOK(c, toEntryResponse(created))
}
