package handler

import (
	"github.com/labstack/echo/v4"
)

type UsageHandler struct {
	usage UsageService
}

func NewUsageHandler(usage UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

func (h *UsageHandler) GetUsage(c echo.Context) error {
	ownerID, err := caller(c)
	if err != nil {
		return err
	}

	u, err := h.usage.GetUsage(c.Request().Context(), ownerID)
	if err != nil {
		return err
	}
	return respondOK(c, toUsageResponse(u))
}
