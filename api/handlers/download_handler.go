package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/subsync-go/internal/app"
	"github.com/yourusername/subsync-go/internal/domain"
)

// DownloadHandler handles download-pipeline HTTP requests
type DownloadHandler struct {
	queueMgr *app.QueueManager
	identity domain.Identity
	logger   *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(queueMgr *app.QueueManager, identity domain.Identity, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		queueMgr: queueMgr,
		identity: identity,
		logger:   logger,
	}
}

// SubmitRequest represents a request to queue a song download
type SubmitRequest struct {
	SongID    string `json:"song_id" binding:"required"`
	AuthToken string `json:"auth_token,omitempty"`
}

// Submit handles POST /api/v1/downloads
func (h *DownloadHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handle, err := h.queueMgr.Submit(req.SongID, h.identity, req.AuthToken)
	if err != nil {
		h.logger.Error("Failed to submit download", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, handle.Task)
}

// Get handles GET /api/v1/downloads/:id
func (h *DownloadHandler) Get(c *gin.Context) {
	task, err := h.queueMgr.GetTask(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// List handles GET /api/v1/downloads
func (h *DownloadHandler) List(c *gin.Context) {
	status := domain.TaskStatus(c.Query("status"))
	tasks, err := h.queueMgr.ListTasks(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// Stats handles GET /api/v1/downloads/stats
func (h *DownloadHandler) Stats(c *gin.Context) {
	stats, err := h.queueMgr.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// StopAll handles DELETE /api/v1/downloads. There is no per-task cancel:
// the queue identity rotates and everything not yet running is orphaned.
func (h *DownloadHandler) StopAll(c *gin.Context) {
	if err := h.queueMgr.StopAll(); err != nil {
		h.logger.Error("Failed to stop downloads", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}
