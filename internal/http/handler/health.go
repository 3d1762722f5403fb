package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StreamStatus reports whether the stream loop's last read succeeded.
type StreamStatus interface {
	Ready() bool
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	stream StreamStatus
	redis  Pinger
}

func NewHealthHandler(stream StreamStatus, redis Pinger) *HealthHandler {
	return &HealthHandler{stream: stream, redis: redis}
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	redisConnected := h.redis != nil && h.redis.Ping(ctx) == nil
	streamReady := h.stream != nil && h.stream.Ready()
	ready := redisConnected && streamReady

	status, code := "ok", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":         status,
		"redisConnected": redisConnected,
		"streamReady":    streamReady,
	})
}
