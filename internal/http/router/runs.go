package router

import (
	"basegraph.app/livefeed/internal/http/handler"
	"github.com/gin-gonic/gin"
)

func RunsRouter(rg *gin.RouterGroup, h *handler.RunsHandler) {
	rg.GET("", h.List)
	rg.GET("/:runId", h.Get)
}
