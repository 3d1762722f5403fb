package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "livefeed"

// Attribute keys shared by every span the feed opens.
const (
	AttrRecordID  = attribute.Key("feed.record_id")
	AttrRunID     = attribute.Key("feed.run_id")
	AttrEventType = attribute.Key("feed.event_type")
	AttrPhase     = attribute.Key("feed.phase")
)

// IngestSpan covers the handling of one stream record.
type IngestSpan struct {
	ctx  context.Context
	span trace.Span
}

// StartIngestSpan opens a consumer span for a stream record and copies the
// record's identity into the span attributes. The returned context carries
// the span so logs written under it get trace_id/span_id.
func StartIngestSpan(ctx context.Context, recordID, runID, eventType string) *IngestSpan {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "feed.ingest",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			AttrRecordID.String(recordID),
			AttrRunID.String(runID),
			AttrEventType.String(eventType),
		))
	return &IngestSpan{ctx: ctx, span: span}
}

func (s *IngestSpan) Context() context.Context {
	return s.ctx
}

// Skipped marks a record that produced no activity.
func (s *IngestSpan) Skipped(reason string) {
	s.span.SetAttributes(attribute.String("feed.skipped", reason))
}

func (s *IngestSpan) Recorded(phase string) {
	s.span.SetAttributes(AttrPhase.String(phase))
}

// Fail records err (or a recovered panic value) and marks the span as errored.
func (s *IngestSpan) Fail(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *IngestSpan) End() {
	s.span.End()
}
