package handler

import (
	"net/http"
	"time"

	"drive-service/internal/audit"
	"drive-service/internal/domain/share"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type ShareHandler struct {
	shares ShareService
	urls   DownloadPresigner
	cache  URLCache
	audit  Auditor
	log    zerolog.Logger
}

func NewShareHandler(shares ShareService, urls DownloadPresigner, cache URLCache, auditor Auditor, logger zerolog.Logger) *ShareHandler {
	return &ShareHandler{
		shares: shares,
		urls:   urls,
		cache:  cache,
		audit:  auditor,
		log:    logger.With().Str("component", "share_handler").Logger(),
	}
}

type ShareCodeResponse struct {
	Code      string    `json:"code"`
	FileID    string    `json:"file_id"`
	ExpiresAt time.Time `json:"expires_at"`
	SharePath string    `json:"share_path"`
}

type DownloadResponse struct {
	DownloadURL string `json:"download_url"`
	FileName    string `json:"file_name"`
}

func toShareResponse(sc *share.ShareCode) ShareCodeResponse {
	return ShareCodeResponse{
		Code:      sc.Code,
		FileID:    sc.FileID.String(),
		ExpiresAt: sc.ExpiresAt,
		SharePath: "/s/" + sc.Code,
	}
}

func (h *ShareHandler) Issue(c echo.Context) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}
	fileID, err := pathID(c)
	if err != nil {
		return err
	}

	sc, err := h.shares.Issue(c.Request().Context(), ownerID, fileID)
	h.audit.Record(c, audit.ActionShare, &fileID, err, nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toShareResponse(sc))
}

func (h *ShareHandler) Current(c echo.Context) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}
	fileID, err := pathID(c)
	if err != nil {
		return err
	}

	sc, err := h.shares.Current(c.Request().Context(), ownerID, fileID)
	if err != nil {
		return err
	}
	return respondOK(c, toShareResponse(sc))
}

func (h *ShareHandler) Revoke(c echo.Context) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}

	err = h.shares.Revoke(c.Request().Context(), ownerID, c.Param(paramCode))
	h.audit.Record(c, audit.ActionRevoke, nil, err, nil)
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Download resolves a public share code on every request, so a revoked or trashed file stops
// resolving at once. Only the presigned URL for a live file is cached.
func (h *ShareHandler) Download(c echo.Context) error {
	ctx := c.Request().Context()

	file, err := h.shares.ResolveFile(ctx, c.Param(paramCode))
	if err != nil {
		h.audit.Record(c, audit.ActionShareAccess, nil, err, nil)
		return err
	}
	h.audit.Record(c, audit.ActionShareAccess, &file.ID, nil, nil)

	key := downloadCacheKeyPrefix + file.ID.String()
	if url, ok := h.cache.Get(ctx, key); ok {
		return respondOK(c, DownloadResponse{DownloadURL: url, FileName: file.Name})
	}

	url, err := h.urls.PresignGet(ctx, *file.StorageKey, file.Name)
	if err != nil {
		return err
	}

	// Hand out cached URLs only while at least half their lifetime remains.
	expiry := time.Now().Add(h.urls.PresignedURLExpiry() / 2)
	if err := h.cache.Set(ctx, key, url, expiry); err != nil {
		h.log.Warn().Err(err).Str("file_id", file.ID.String()).Msg("failed to cache download url")
	}

	return respondOK(c, DownloadResponse{DownloadURL: url, FileName: file.Name})
}
