package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/livefeed/internal/feed"
	"basegraph.app/livefeed/internal/http/handler"
)

var _ = Describe("RunsHandler", func() {
	var (
		router *gin.Engine
		runs   *mockRunReader
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		runs = &mockRunReader{}
		h := handler.NewRunsHandler(runs)
		router.GET("/runs", h.List)
		router.GET("/runs/:runId", h.Get)
	})

	It("lists runs", func() {
		runs.runsFn = func() []feed.Run {
			return []feed.Run{
				{RunID: "r2", Task: "deploy", Phase: feed.PhaseWorking, Progress: 40, Activities: []feed.ActivityItem{}},
				{RunID: "r1", Task: "fix", Phase: feed.PhaseComplete, Progress: 100, Activities: []feed.ActivityItem{}},
			}
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp []map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp).To(HaveLen(2))
		Expect(resp[0]["runId"]).To(Equal("r2"))
		Expect(resp[0]["progress"]).To(BeNumerically("==", 40))
		Expect(resp[0]).NotTo(HaveKey("ExpiresAt"))
	})

	It("lists an empty array when there are no runs", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("[]"))
	})

	It("returns one run", func() {
		runs.getFn = func(runID string) (feed.Run, error) {
			return feed.Run{RunID: runID, Task: "fix", Phase: feed.PhaseQueued, Progress: 5, Activities: []feed.ActivityItem{}}, nil
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/r1", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["runId"]).To(Equal("r1"))
		Expect(resp["phase"]).To(Equal("queued"))
	})

	It("returns 404 for an unknown run", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/nope", nil))

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("returns 500 on unexpected errors", func() {
		runs.getFn = func(string) (feed.Run, error) {
			return feed.Run{}, errors.New("boom")
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/r1", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
