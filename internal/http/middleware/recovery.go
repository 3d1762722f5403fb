package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"basegraph.app/livefeed/common/logger"
)

// Recovery turns a handler panic into a 500 with the same {"error": ...} body
// the handlers return. Streams that already wrote headers are only aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			fields := logger.LogFields{Component: "livefeed.http"}
			if runID := c.Param("id"); runID != "" {
				fields.RunID = &runID
			}
			ctx := logger.WithLogFields(c.Request.Context(), fields)

			err := fmt.Errorf("panic: %v", rec)
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic recovered")

			route := c.FullPath()
			if route == "" {
				route = c.Request.URL.Path
			}
			slog.ErrorContext(ctx, "panic recovered",
				"error", err,
				"method", c.Request.Method,
				"route", route,
				"stack", string(debug.Stack()))

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}()
		c.Next()
	}
}
