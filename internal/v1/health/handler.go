// Package health exposes liveness and readiness probes. The server has no
// external dependencies, so readiness is about the process itself plus a
// snapshot of the signaling load for operators.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Stats is the view of the running server the probes report on.
// Implemented by the coordinator/registry pair wired in at startup.
type Stats interface {
	SessionCount() int
	RoomCount() int
}

// Handler manages health check endpoints
type Handler struct {
	stats     Stats
	startedAt time.Time
}

// NewHandler creates a new health check handler.
func NewHandler(stats Stats) *Handler {
	return &Handler{
		stats:     stats,
		startedAt: time.Now(),
	}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Sessions      int    `json:"sessions"`
	Rooms         int    `json:"rooms"`
	Timestamp     string `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// All state is in-process, so a live server is a ready server; the body
// carries the current load for operators.
func (h *Handler) Readiness(c *gin.Context) {
	response := ReadinessResponse{
		Status:        "ready",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if h.stats != nil {
		response.Sessions = h.stats.SessionCount()
		response.Rooms = h.stats.RoomCount()
	}

	c.JSON(http.StatusOK, response)
}
