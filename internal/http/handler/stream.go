package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"basegraph.app/livefeed/internal/hub"
	"github.com/gin-gonic/gin"
)

// Subscriptions is the part of the hub the SSE transport needs.
type Subscriptions interface {
	Join(ctx context.Context, transport string) (*hub.Subscriber, error)
	Leave(ctx context.Context, sub *hub.Subscriber)
}

type StreamHandler struct {
	hub Subscriptions
}

func NewStreamHandler(h Subscriptions) *StreamHandler {
	return &StreamHandler{hub: h}
}

// Stream serves hub messages as server-sent events. The event name is the
// message type and the data is the same JSON envelope WebSocket clients get.
func (h *StreamHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	sub, err := h.hub.Join(ctx, "sse")
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed unavailable"})
		return
	}
	defer h.hub.Leave(ctx, sub)

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case msg := <-sub.Messages():
			sseWrite(c.Writer, eventName(msg), msg)
			flusher.Flush()
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
}

func sseWrite(w http.ResponseWriter, event string, data []byte) {
	if event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event)
	}
	for _, line := range strings.Split(string(data), "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
}

func eventName(msg []byte) string {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return ""
	}
	return envelope.Type
}
