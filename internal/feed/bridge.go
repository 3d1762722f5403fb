package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"basegraph.app/livefeed/common/logger"
	"basegraph.app/livefeed/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

type BridgeConfig struct {
	CatchUpCount   int64         // Newest records replayed on startup
	BatchSize      int64         // Max records per blocking read
	Block          time.Duration // Wait per blocking read
	ReconnectDelay time.Duration // Backoff after connection reset/closed
	ErrorBackoff   time.Duration // Backoff after any other read error
}

func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		CatchUpCount:   100,
		BatchSize:      20,
		Block:          2 * time.Second,
		ReconnectDelay: 2 * time.Second,
		ErrorBackoff:   5 * time.Second,
	}
}

// Bridge tails the telemetry stream and feeds every record, one at a time and
// in stream order, through Decode and RunTable.Ingest. It is the only writer
// to the table.
type Bridge struct {
	store telemetry.LogStore
	table *RunTable
	cfg   BridgeConfig

	cursor atomic.Value // string
	ready  atomic.Bool

	stopping  atomic.Bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewBridge(store telemetry.LogStore, table *RunTable, cfg BridgeConfig) *Bridge {
	defaults := DefaultBridgeConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.Block <= 0 {
		cfg.Block = defaults.Block
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaults.ReconnectDelay
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaults.ErrorBackoff
	}

	b := &Bridge{
		store:     store,
		table:     table,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	b.cursor.Store(telemetry.LatestID)
	return b
}

// Run catches up on recent history and then tails the stream until Stop is
// called or ctx is cancelled. Read errors are retried forever.
func (b *Bridge) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "livefeed.feed.bridge",
	})

	defer close(b.stoppedCh)

	b.catchUp(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "listener stopped")
			return ctx.Err()
		case <-b.stopCh:
			slog.InfoContext(ctx, "listener stopped")
			return nil
		default:
		}

		records, err := b.store.ReadAfter(ctx, b.Cursor(), b.cfg.BatchSize, b.cfg.Block)
		if err != nil {
			if b.stopping.Load() || ctx.Err() != nil {
				continue
			}
			b.ready.Store(false)

			delay := b.cfg.ErrorBackoff
			if IsTransient(err) {
				delay = b.cfg.ReconnectDelay
				slog.WarnContext(ctx, "stream connection lost, reconnecting",
					"error", err,
					"cursor", b.Cursor(),
					"retry_in", delay)
			} else {
				slog.ErrorContext(ctx, "stream read error",
					"error", err,
					"cursor", b.Cursor(),
					"retry_in", delay)
			}
			b.wait(ctx, delay)
			continue
		}

		b.ready.Store(true)
		for _, rec := range records {
			b.cursor.Store(rec.ID)
			b.process(ctx, rec)
		}
	}
}

// Stop signals the loop and waits for it to exit. The in-flight blocking read
// is allowed to finish, so this returns within one Block interval.
func (b *Bridge) Stop() {
	if b.stopping.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stoppedCh
}

// Ready reports whether the most recent stream read succeeded.
func (b *Bridge) Ready() bool {
	return b.ready.Load()
}

// Cursor is the id of the last record handed to the table, or "$" before any.
func (b *Bridge) Cursor() string {
	return b.cursor.Load().(string)
}

func (b *Bridge) catchUp(ctx context.Context) {
	if b.cfg.CatchUpCount <= 0 {
		return
	}

	recent, err := b.store.Recent(ctx, b.cfg.CatchUpCount)
	if err != nil {
		if !b.stopping.Load() {
			slog.WarnContext(ctx, "catch-up failed, starting from live", "error", err)
		}
		return
	}
	b.ready.Store(true)
	if len(recent) == 0 {
		return
	}

	// Recent is newest-first; replay in stream order.
	chronological := slices.Clone(recent)
	slices.Reverse(chronological)
	for _, rec := range chronological {
		b.cursor.Store(rec.ID)
		b.process(ctx, rec)
	}

	slog.InfoContext(ctx, "caught up on recent events",
		"events", len(recent),
		"runs", b.table.Len(),
		"cursor", b.Cursor())
}

// process runs one record through Decode and Ingest. A panic is contained to
// the record that caused it.
func (b *Bridge) process(ctx context.Context, rec telemetry.Record) {
	var span *logger.IngestSpan
	defer func() {
		if r := recover(); r != nil {
			if span != nil {
				span.Fail(fmt.Errorf("panic: %v", r))
			}
			slog.ErrorContext(ctx, "panic recovered while ingesting record",
				"panic", r,
				"message_id", rec.ID)
		}
		if span != nil {
			span.End()
		}
	}()

	evt := Decode(rec)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     logger.Ptr(evt.RunID),
		MessageID: logger.Ptr(rec.ID),
		EventType: logger.Ptr(evt.RawType),
	})
	span = logger.StartIngestSpan(ctx, rec.ID, evt.RunID, evt.RawType)
	ctx = span.Context()

	if !evt.Known() {
		span.Skipped("unknown event type")
		slog.DebugContext(ctx, "skipping non-actionable event")
		return
	}

	item := b.table.Ingest(ctx, evt)
	if item == nil {
		span.Skipped("no activity")
		return
	}
	span.Recorded(string(item.Phase))
	slog.DebugContext(ctx, "activity recorded",
		"phase", item.Phase,
		"title", item.Title,
		"tool_args", logger.Truncate(item.ToolArgs, 120))
}

// wait sleeps for d unless the bridge is stopped or ctx is cancelled first.
func (b *Bridge) wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-b.stopCh:
	}
}

// IsTransient reports whether a read error is a dropped or closed connection
// that is worth a quick reconnect rather than the longer backoff.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "ECONNRESET") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "closed")
}
