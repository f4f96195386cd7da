// Package health exposes the health check endpoints.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Stats reports live server state for the readiness probe.
type Stats interface {
	ClientCount() int
	RoomCount() int
}

// Handler manages health check endpoints
type Handler struct {
	stats Stats
}

// NewHandler creates a new health check handler
func NewHandler(stats Stats) *Handler {
	return &Handler{stats: stats}
}

// Check handles the plain health endpoint.
// GET /health
// Returns 200 "OK" as text/plain; load balancers probe this path and every
// other path upgrades to WebSocket.
func (h *Handler) Check(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
	Timestamp   string `json:"timestamp"`
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
// The server has no external dependencies, so readiness reports live
// counters rather than dependency checks.
func (h *Handler) Readiness(c *gin.Context) {
	c.JSON(http.StatusOK, ReadinessResponse{
		Status:      "ready",
		Rooms:       h.stats.RoomCount(),
		Connections: h.stats.ClientCount(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}
