// Package admin exposes the plain HTTP side of the server: the banner and
// server-side room code generation for clients that prefer not to invent
// their own codes.
package admin

import (
	"net/http"

	"github.com/duocall/signaling/internal/v1/logging"
	"github.com/duocall/signaling/internal/v1/registry"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const banner = "duocall signaling server - connect via WebSocket at /rtc\n"

// Handler serves the admin endpoints.
type Handler struct {
	registry *registry.Registry
}

// NewHandler creates an admin handler backed by the room registry.
func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{registry: reg}
}

// Banner handles GET / with a human-readable identification string.
func (h *Handler) Banner(c *gin.Context) {
	c.String(http.StatusOK, banner)
}

// GenerateCode handles GET /generate-code: registers a fresh room and
// returns its code as the plain-text body.
func (h *Handler) GenerateCode(c *gin.Context) {
	code, err := h.registry.Generate()
	if err != nil {
		logging.Error(c.Request.Context(), "Room code generation failed", zap.Error(err))
		c.String(http.StatusServiceUnavailable, "no room available")
		return
	}
	c.String(http.StatusOK, string(code))
}
