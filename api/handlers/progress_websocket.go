package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/subsync-go/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local daemon, any origin
	},
}

// ProgressWebSocketHandler streams download pipeline events to connected
// clients in real time
type ProgressWebSocketHandler struct {
	queueMgr *app.QueueManager
	logger   *zap.Logger
}

// NewProgressWebSocketHandler creates a new WebSocket handler
func NewProgressWebSocketHandler(queueMgr *app.QueueManager, log *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{queueMgr: queueMgr, logger: log}
}

// HandleWebSocket handles GET /api/v1/downloads/ws
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	events := h.queueMgr.Subscribe()
	defer h.queueMgr.Unsubscribe(events)

	h.logger.Info("Progress WebSocket client connected",
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Reader goroutine: its only job is to notice the client going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("Progress WebSocket write failed", zap.Error(err))
				return
			}
		}
	}
}
