package feed_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/livefeed/internal/feed"
	"basegraph.app/livefeed/internal/telemetry"
)

func record(id string, fields ...string) telemetry.Record {
	return telemetry.Record{ID: id, Fields: fields}
}

var _ = Describe("Decode", func() {
	It("pairs fields and keeps the record id", func() {
		evt := feed.Decode(record("1-0", "type", "llm.start", "ts", "1700000000000", "runId", "r1"))

		Expect(evt.ID).To(Equal("1-0"))
		Expect(evt.Type).To(Equal(feed.EventLLMStart))
		Expect(evt.RunID).To(Equal("r1"))
		Expect(evt.TS).To(Equal(int64(1700000000000)))
		Expect(evt.Known()).To(BeTrue())
	})

	It("lets a repeated key overwrite the earlier value", func() {
		evt := feed.Decode(record("1-0", "runId", "first", "type", "llm.start", "runId", "second"))
		Expect(evt.RunID).To(Equal("second"))
	})

	It("ignores a trailing key without a value", func() {
		evt := feed.Decode(record("1-0", "type", "llm.start", "runId"))
		Expect(evt.Type).To(Equal(feed.EventLLMStart))
		Expect(evt.RunID).To(Equal("unknown"))
	})

	It("substitutes an empty payload when data is not JSON", func() {
		evt := feed.Decode(record("1-0", "type", "tool.start", "runId", "r1", "data", "{not json"))

		Expect(evt.Payload).NotTo(BeNil())
		Expect(evt.Payload).To(BeEmpty())
		Expect(evt.ToolName).To(BeEmpty())
		Expect(evt.Type).To(Equal(feed.EventToolStart))
	})

	It("treats a non-object JSON payload as empty", func() {
		evt := feed.Decode(record("1-0", "type", "tool.start", "data", `["a","b"]`))
		Expect(evt.Payload).To(BeEmpty())
	})

	It("leaves TS at zero when ts is missing or garbage", func() {
		Expect(feed.Decode(record("1-0", "type", "llm.start")).TS).To(BeZero())
		Expect(feed.Decode(record("1-0", "type", "llm.start", "ts", "soon")).TS).To(BeZero())
	})

	DescribeTable("renames producer event names",
		func(producerName string, expected feed.EventType) {
			evt := feed.Decode(record("1-0", "type", producerName, "runId", "r1"))
			Expect(evt.Type).To(Equal(expected))
		},
		Entry("tool_start", "tool_start", feed.EventToolStart),
		Entry("tool_end", "tool_end", feed.EventToolDone),
		Entry("tool_error", "tool_error", feed.EventToolError),
		Entry("llm_start", "llm_start", feed.EventLLMStart),
		Entry("llm_end", "llm_end", feed.EventLLMDone),
		Entry("actor_stopped", "actor_stopped", feed.EventRunDone),
		Entry("async_task_dispatched", "async_task_dispatched", feed.EventSubagentSpawn),
		Entry("canonical names pass through", "subagent.done", feed.EventSubagentDone),
	)

	It("marks names outside the canonical set as unknown but keeps the raw name", func() {
		evt := feed.Decode(record("1-0", "type", "heartbeat", "runId", "r1"))

		Expect(evt.Type).To(Equal(feed.EventUnknown))
		Expect(evt.RawType).To(Equal("heartbeat"))
		Expect(evt.Known()).To(BeFalse())
	})

	Describe("tool fields", func() {
		It("prefers tool over toolName", func() {
			evt := feed.Decode(record("1-0", "type", "tool.start", "data", `{"toolName":"b","tool":"a"}`))
			Expect(evt.ToolName).To(Equal("a"))
		})

		It("falls back to toolName", func() {
			evt := feed.Decode(record("1-0", "type", "tool.start", "data", `{"toolName":"grep"}`))
			Expect(evt.ToolName).To(Equal("grep"))
		})

		It("picks the highest priority argument field", func() {
			evt := feed.Decode(record("1-0", "type", "tool.start",
				"data", `{"tool":"bash","command":"ls -la","commandPreview":"ls","path":"/tmp"}`))
			Expect(evt.ToolArgs).To(Equal("ls"))
		})

		It("skips empty candidates", func() {
			evt := feed.Decode(record("1-0", "type", "tool.start",
				"data", `{"tool":"read","commandPreview":"","command":null,"path":"README.md"}`))
			Expect(evt.ToolArgs).To(Equal("README.md"))
		})

		It("stringifies non-string arguments", func() {
			evt := feed.Decode(record("1-0", "type", "tool.start",
				"data", `{"tool":"read_multi","args":["a.go","b.go"]}`))
			Expect(evt.ToolArgs).To(Equal(`["a.go","b.go"]`))
		})
	})

	Describe("message envelopes", func() {
		It("turns a sent task request into run.start with the nested task", func() {
			evt := feed.Decode(record("1-0", "type", "message_sent", "runId", "r1",
				"messageType", "TaskRequest",
				"data", `{"payload":{"task":"deploy the api"}}`))

			Expect(evt.Type).To(Equal(feed.EventRunStart))
			Expect(evt.Task).To(Equal("deploy the api"))
		})

		It("reads the message kind from the payload when the field is absent", func() {
			evt := feed.Decode(record("1-0", "type", "message_received", "runId", "r1",
				"data", `{"messageType":"TaskRequest","task":"review the PR"}`))

			Expect(evt.Type).To(Equal(feed.EventRunStart))
			Expect(evt.Task).To(Equal("review the PR"))
		})

		It("uses a placeholder task when a received request carries none", func() {
			evt := feed.Decode(record("1-0", "type", "message_received", "messageType", "TaskRequest"))
			Expect(evt.Task).To(Equal("New task received…"))
		})

		It("uses the generic task when a sent request carries none", func() {
			evt := feed.Decode(record("1-0", "type", "message_sent", "messageType", "TaskRequest"))
			Expect(evt.Task).To(Equal("Working on something…"))
		})

		It("turns a sent task result into run.done with the nested status", func() {
			evt := feed.Decode(record("1-0", "type", "message_sent", "runId", "r1",
				"messageType", "TaskResult",
				"data", `{"payload":{"status":"failed"}}`))

			Expect(evt.Type).To(Equal(feed.EventRunDone))
			Expect(evt.Status).To(Equal("failed"))
		})

		It("defaults a task result status to ok", func() {
			evt := feed.Decode(record("1-0", "type", "message_sent", "messageType", "TaskResult"))
			Expect(evt.Status).To(Equal("ok"))
		})

		It("leaves other envelopes unknown", func() {
			evt := feed.Decode(record("1-0", "type", "message_received", "messageType", "TaskResult"))
			Expect(evt.Type).To(Equal(feed.EventUnknown))
		})
	})

	It("reads task and status from top-level fields", func() {
		start := feed.Decode(record("1-0", "type", "run.start", "task", "build a CLI"))
		Expect(start.Task).To(Equal("build a CLI"))

		done := feed.Decode(record("2-0", "type", "run.done", "status", "error"))
		Expect(done.Status).To(Equal("error"))
	})

	It("falls back to the payload for run.done status", func() {
		evt := feed.Decode(record("1-0", "type", "run.done", "data", `{"status":"done"}`))
		Expect(evt.Status).To(Equal("done"))
	})

	It("is pure", func() {
		rec := record("1-0", "type", "tool_start", "runId", "r1", "data", `{"tool":"grep","pattern":"TODO"}`)
		Expect(feed.Decode(rec)).To(Equal(feed.Decode(rec)))
	})
})
