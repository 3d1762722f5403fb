package router

import (
	"basegraph.app/livefeed/internal/http/handler"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the HTTP surface reads from.
type Deps struct {
	Runs      handler.RunReader
	Stream    handler.StreamStatus
	Redis     handler.Pinger
	Hub       handler.Subscriptions
	WebSocket gin.HandlerFunc
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	healthHandler := handler.NewHealthHandler(deps.Stream, deps.Redis)
	HealthRouter(router.Group("/_health"), healthHandler)

	if deps.WebSocket != nil {
		router.GET("/ws", deps.WebSocket)
	}

	api := router.Group("/api")
	{
		runsHandler := handler.NewRunsHandler(deps.Runs)
		RunsRouter(api.Group("/runs"), runsHandler)

		streamHandler := handler.NewStreamHandler(deps.Hub)
		api.GET("/stream", streamHandler.Stream)

		api.GET("/schema", handler.Schema)
	}
}
