package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// The stream loop enriches the context once per record so everything logged while
// ingesting it carries the run and record ids.
type LogFields struct {
	RunID        *string // Run the record belongs to
	MessageID    *string // Redis stream record ID
	EventType    *string // Canonical event type (e.g., "tool.start")
	SubscriberID *int64  // Live subscriber handle
	Component    string  // Component name (OTel semantic convention style, e.g., "livefeed.feed.bridge")
}

// WithLogFields merges fields into those already on ctx; set values in fields win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	return context.WithValue(ctx, logFieldsKey, mergeFields(GetLogFields(ctx), fields))
}

func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing
	if next.RunID != nil {
		result.RunID = next.RunID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.EventType != nil {
		result.EventType = next.EventType
	}
	if next.SubscriberID != nil {
		result.SubscriberID = next.SubscriberID
	}
	if next.Component != "" {
		result.Component = next.Component
	}
	return result
}

func (f LogFields) attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 5)
	if f.RunID != nil {
		attrs = append(attrs, slog.String("run_id", *f.RunID))
	}
	if f.MessageID != nil {
		attrs = append(attrs, slog.String("message_id", *f.MessageID))
	}
	if f.EventType != nil {
		attrs = append(attrs, slog.String("event_type", *f.EventType))
	}
	if f.SubscriberID != nil {
		attrs = append(attrs, slog.Int64("subscriber_id", *f.SubscriberID))
	}
	if f.Component != "" {
		attrs = append(attrs, slog.String("component", f.Component))
	}
	return attrs
}

// Ptr returns a pointer to v, for filling LogFields inline.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens s to maxLen bytes for logging, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
