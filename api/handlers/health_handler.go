package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/subsync-go/internal/app"
	"github.com/yourusername/subsync-go/internal/domain"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	queueMgr *app.QueueManager
	remote   domain.RemoteSource
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queueMgr *app.QueueManager, remote domain.RemoteSource) *HealthHandler {
	return &HealthHandler{queueMgr: queueMgr, remote: remote}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   struct {
		Running bool `json:"running"`
	} `json:"queue"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}
	response.Queue.Running = h.queueMgr.IsRunning()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready. Readiness includes the remote session: a
// session-expired ping means reads will fall back to cache only.
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.queueMgr.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "queue manager not running",
		})
		return
	}

	if err := h.remote.Ping(c.Request.Context()); err != nil {
		reason := "remote unreachable"
		if domain.IsSessionExpired(err) {
			reason = "session expired"
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"reason": reason,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
