package handler_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/livefeed/internal/feed"
	"basegraph.app/livefeed/internal/http/handler"
	"basegraph.app/livefeed/internal/hub"
)

type sseEvent struct {
	name string
	data string
}

func readEvent(r *bufio.Reader) sseEvent {
	var evt sseEvent
	for {
		line, err := r.ReadString('\n')
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return evt
		case strings.HasPrefix(line, "event: "):
			evt.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			evt.data += strings.TrimPrefix(line, "data: ")
		}
	}
}

var _ = Describe("StreamHandler", func() {
	var (
		ctx     context.Context
		feedHub *hub.Hub
		server  *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		gin.SetMode(gin.TestMode)
		source := &mockRunReader{runsFn: func() []feed.Run {
			return []feed.Run{{RunID: "r1", Phase: feed.PhaseWorking, Activities: []feed.ActivityItem{}}}
		}}
		feedHub = hub.New(source, hub.Config{})

		router := gin.New()
		router.GET("/stream", handler.NewStreamHandler(feedHub).Stream)
		server = httptest.NewServer(router)
	})

	AfterEach(func() {
		feedHub.Close(ctx)
		server.Close()
	})

	It("streams the snapshot and then live messages as named events", func() {
		resp, err := http.Get(server.URL + "/stream")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

		reader := bufio.NewReader(resp.Body)
		first := readEvent(reader)
		Expect(first.name).To(Equal("runs"))
		Expect(first.data).To(ContainSubstring(`"runId":"r1"`))

		feedHub.PublishActivity(ctx, feed.ActivityItem{ID: "9-0", RunID: "r1", Title: "All done! ✓"})

		next := readEvent(reader)
		Expect(next.name).To(Equal("activity"))
		Expect(next.data).To(MatchJSON(`{"type":"activity","data":{"id":"9-0","runId":"r1","timestamp":0,"phase":"","title":"All done! ✓"}}`))
	})

	It("drops the subscriber when the client goes away", func() {
		resp, err := http.Get(server.URL + "/stream")
		Expect(err).NotTo(HaveOccurred())
		readEvent(bufio.NewReader(resp.Body))
		Expect(feedHub.Count()).To(Equal(1))

		resp.Body.Close()
		Eventually(feedHub.Count).Should(BeZero())
	})

	It("returns 503 once the hub is closed", func() {
		feedHub.Close(ctx)

		resp, err := http.Get(server.URL + "/stream")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
	})
})
