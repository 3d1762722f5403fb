// Package ws serves hub subscriptions over WebSocket.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"basegraph.app/livefeed/common/logger"
	"basegraph.app/livefeed/internal/hub"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const transportName = "websocket"

type Config struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
}

// Server upgrades HTTP requests and pumps hub messages to the socket.
type Server struct {
	hub      *hub.Hub
	cfg      Config
	upgrader websocket.Upgrader
}

func NewServer(h *hub.Hub, cfg Config) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	return &Server{
		hub: h,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard is served from other origins in development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle is the gin handler for GET /ws.
func (s *Server) Handle(c *gin.Context) {
	// The socket outlives the handler, so detach from the request's cancellation.
	ctx := context.WithoutCancel(c.Request.Context())
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "livefeed.ws"})

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		slog.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}

	sub, err := s.hub.Join(ctx, transportName)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"),
			time.Now().Add(s.cfg.WriteTimeout))
		_ = conn.Close()
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{SubscriberID: logger.Ptr(sub.ID)})

	go s.writePump(ctx, conn, sub)
	go s.readPump(ctx, conn, sub)
}

// readPump only exists to notice the peer going away; client messages are ignored.
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, sub *hub.Subscriber) {
	defer func() {
		s.hub.Leave(ctx, sub)
		_ = conn.Close()
	}()

	conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "websocket read error", "error", err)
			}
			return
		}
	}
}

func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, sub *hub.Subscriber) {
	// Control pings keep proxies from idling the socket out and drive the read deadline.
	ticker := time.NewTicker(s.cfg.PongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-sub.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"),
				time.Now().Add(s.cfg.WriteTimeout))
			return

		case message := <-sub.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.DebugContext(ctx, "websocket write failed", "error", err)
				s.hub.Leave(ctx, sub)
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				s.hub.Leave(ctx, sub)
				return
			}
		}
	}
}
