package router

import (
	"basegraph.app/livefeed/internal/http/handler"
	"github.com/gin-gonic/gin"
)

func HealthRouter(rg *gin.RouterGroup, h *handler.HealthHandler) {
	rg.GET("/live", h.Live)
	rg.GET("/ready", h.Ready)
}
