package feed

import (
	"encoding/json"
	"strconv"

	"basegraph.app/livefeed/internal/telemetry"
)

// EventType is the canonical lifecycle vocabulary the translator understands.
type EventType string

const (
	EventRunStart      EventType = "run.start"
	EventLLMStart      EventType = "llm.start"
	EventLLMDone       EventType = "llm.done"
	EventToolStart     EventType = "tool.start"
	EventToolDone      EventType = "tool.done"
	EventToolError     EventType = "tool.error"
	EventSubagentSpawn EventType = "subagent.spawn"
	EventSubagentDone  EventType = "subagent.done"
	EventRunDone       EventType = "run.done"

	// EventUnknown is anything outside the canonical set. It never produces activity.
	EventUnknown EventType = "unknown"
)

var canonicalEvents = map[EventType]bool{
	EventRunStart:      true,
	EventLLMStart:      true,
	EventLLMDone:       true,
	EventToolStart:     true,
	EventToolDone:      true,
	EventToolError:     true,
	EventSubagentSpawn: true,
	EventSubagentDone:  true,
	EventRunDone:       true,
}

// producerEventNames maps names emitted by the actor runtime to canonical names.
var producerEventNames = map[string]EventType{
	"tool_start":            EventToolStart,
	"tool_end":              EventToolDone,
	"tool_error":            EventToolError,
	"llm_start":             EventLLMStart,
	"llm_end":               EventLLMDone,
	"actor_stopped":         EventRunDone,
	"async_task_dispatched": EventSubagentSpawn,
	"async_task_started":    EventSubagentDone, // closest match available for the feed
}

// Actor-system message envelopes that carry run boundaries.
const (
	envelopeSent       = "message_sent"
	envelopeReceived   = "message_received"
	messageTaskRequest = "TaskRequest"
	messageTaskResult  = "TaskResult"
)

const (
	unknownRunID      = "unknown"
	defaultTaskText   = "Working on something…"
	receivedTaskText  = "New task received…"
	defaultDoneStatus = "ok"
)

var (
	toolNameFields = []string{"tool", "toolName"}
	toolArgFields  = []string{
		"commandPreview", "command", "path", "query", "pattern",
		"args", "url", "text", "task", "glob", "role",
	}
)

// DecodedEvent is one stream record normalized into the canonical vocabulary.
type DecodedEvent struct {
	ID       string    // stream record id
	Type     EventType // EventUnknown when outside the canonical set
	RawType  string    // type after renaming, before canonical validation
	RunID    string
	TS       int64 // unix ms from the record, 0 when absent or unparseable
	Task     string
	ToolName string
	ToolArgs string
	Status   string
	Raw      map[string]string
	Payload  map[string]any
}

func (e DecodedEvent) Known() bool {
	return e.Type != EventUnknown
}

// Decode normalizes a raw stream record. It never fails: malformed input
// degrades to empty values.
func Decode(rec telemetry.Record) DecodedEvent {
	raw := pairFields(rec.Fields)
	payload := parsePayload(raw["data"])

	eventType := raw["type"]
	if renamed, ok := producerEventNames[eventType]; ok {
		eventType = string(renamed)
	}

	evt := DecodedEvent{
		ID:       rec.ID,
		RunID:    raw["runId"],
		Raw:      raw,
		Payload:  payload,
		ToolName: probeString(payload, toolNameFields),
		ToolArgs: probeString(payload, toolArgFields),
		Task:     raw["task"],
		Status:   raw["status"],
	}
	if evt.RunID == "" {
		evt.RunID = unknownRunID
	}
	if ts, err := strconv.ParseFloat(raw["ts"], 64); err == nil && ts > 0 {
		evt.TS = int64(ts)
	}

	messageType := raw["messageType"]
	if messageType == "" {
		messageType, _ = payload["messageType"].(string)
	}
	nested, _ := payload["payload"].(map[string]any)

	switch {
	case messageType == messageTaskRequest && (eventType == envelopeSent || eventType == envelopeReceived):
		fallback := defaultTaskText
		if eventType == envelopeReceived {
			fallback = receivedTaskText
		}
		eventType = string(EventRunStart)
		evt.Task = firstNonEmpty(stringField(nested, "task"), stringField(payload, "task"), fallback)
	case messageType == messageTaskResult && eventType == envelopeSent:
		eventType = string(EventRunDone)
		evt.Status = firstNonEmpty(stringField(nested, "status"), defaultDoneStatus)
	}

	evt.RawType = eventType
	evt.Type = EventType(eventType)
	if !canonicalEvents[evt.Type] {
		evt.Type = EventUnknown
	}

	switch evt.Type {
	case EventRunStart:
		evt.Task = firstNonEmpty(evt.Task, stringField(nested, "task"), stringField(payload, "task"))
	case EventRunDone:
		evt.Status = firstNonEmpty(evt.Status, stringField(payload, "status"), defaultDoneStatus)
	}

	return evt
}

// pairFields folds a flat key/value list into a map. Later duplicates win and
// a trailing key without a value is dropped.
func pairFields(fields []string) map[string]string {
	raw := make(map[string]string, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		raw[fields[i]] = fields[i+1]
	}
	return raw
}

func parsePayload(data string) map[string]any {
	payload := map[string]any{}
	if data == "" {
		return payload
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil || payload == nil {
		return map[string]any{}
	}
	return payload
}

// probeString returns the first candidate field holding a meaningful value,
// rendered as a string. Empty strings, zero, false and null are skipped.
func probeString(payload map[string]any, candidates []string) string {
	for _, key := range candidates {
		v, ok := payload[key]
		if !ok || isBlank(v) {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		return string(b)
	}
	return ""
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	}
	return false
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
