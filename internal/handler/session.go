package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"gowa-blast/internal/model"
	"gowa-blast/internal/service"
)

// GET /api/status
func (h *Handler) Status(c echo.Context) error {
	return SuccessResponse(c, http.StatusOK, "Status retrieved", h.sessions.Status())
}

// POST /api/connect
func (h *Handler) Connect(c echo.Context) error {
	var req service.ConnectRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", CodeInvalidRequest, err.Error())
	}

	snap, err := h.sessions.Connect(c.Request().Context(), req)
	if err != nil {
		return serviceError(c, err)
	}

	// The cloud variant resolves synchronously; the pairing variants
	// come back as connecting and progress is observed via /api/status.
	if snap.Status == model.StatusReady || snap.Status == model.StatusError {
		return SuccessResponse(c, http.StatusOK, "Connect processed", snap)
	}
	return SuccessResponse(c, http.StatusAccepted, "Connecting, poll /api/status for progress", snap)
}

// POST /api/disconnect
func (h *Handler) Disconnect(c echo.Context) error {
	snap := h.sessions.Disconnect(c.Request().Context())
	return SuccessResponse(c, http.StatusOK, "Disconnected", snap)
}
