package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/livefeed/common/logger"
)

var _ = Describe("TraceHandler", func() {
	var (
		buf *bytes.Buffer
		log *slog.Logger
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		log = slog.New(logger.NewTraceHandler(slog.NewJSONHandler(buf, nil)))
	})

	decode := func() map[string]any {
		var line map[string]any
		ExpectWithOffset(1, json.Unmarshal(buf.Bytes(), &line)).To(Succeed())
		return line
	}

	It("adds context log fields to every record", func() {
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			RunID:     logger.Ptr("r1"),
			MessageID: logger.Ptr("1-0"),
			Component: "livefeed.feed.bridge",
		})
		ctx = logger.WithLogFields(ctx, logger.LogFields{
			EventType:    logger.Ptr("tool.start"),
			SubscriberID: logger.Ptr(int64(7)),
		})

		log.InfoContext(ctx, "hello")

		line := decode()
		Expect(line).To(HaveKeyWithValue("run_id", "r1"))
		Expect(line).To(HaveKeyWithValue("message_id", "1-0"))
		Expect(line).To(HaveKeyWithValue("event_type", "tool.start"))
		Expect(line).To(HaveKeyWithValue("subscriber_id", BeNumerically("==", 7)))
		Expect(line).To(HaveKeyWithValue("component", "livefeed.feed.bridge"))
		Expect(line).NotTo(HaveKey("trace_id"))
	})

	It("lets later fields win", func() {
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{RunID: logger.Ptr("r1"), Component: "a"})
		ctx = logger.WithLogFields(ctx, logger.LogFields{RunID: logger.Ptr("r2")})

		fields := logger.GetLogFields(ctx)
		Expect(*fields.RunID).To(Equal("r2"))
		Expect(fields.Component).To(Equal("a"))
	})

	It("logs plainly without fields", func() {
		log.InfoContext(context.Background(), "hello")
		Expect(decode()).NotTo(HaveKey("run_id"))
	})
})

var _ = Describe("Truncate", func() {
	It("leaves short strings alone", func() {
		Expect(logger.Truncate("abc", 5)).To(Equal("abc"))
	})

	It("cuts long strings", func() {
		Expect(logger.Truncate("abcdef", 3)).To(Equal("abc..."))
	})
})
