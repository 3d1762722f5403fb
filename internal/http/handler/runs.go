package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"basegraph.app/livefeed/internal/feed"
	"github.com/gin-gonic/gin"
)

// RunReader is the read-only view of the run table.
type RunReader interface {
	Runs() []feed.Run
	Get(runID string) (feed.Run, error)
}

type RunsHandler struct {
	runs RunReader
}

func NewRunsHandler(runs RunReader) *RunsHandler {
	return &RunsHandler{runs: runs}
}

func (h *RunsHandler) List(c *gin.Context) {
	runs := h.runs.Runs()
	if runs == nil {
		runs = []feed.Run{}
	}
	c.JSON(http.StatusOK, runs)
}

func (h *RunsHandler) Get(c *gin.Context) {
	runID := c.Param("runId")

	run, err := h.runs.Get(runID)
	if err != nil {
		if errors.Is(err, feed.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		slog.ErrorContext(c.Request.Context(), "failed to read run", "error", err, "run_id", runID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, run)
}
