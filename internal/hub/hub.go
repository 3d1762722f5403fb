// Package hub fans run and activity updates out to live subscribers.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"basegraph.app/livefeed/common/id"
	"basegraph.app/livefeed/common/logger"
	"basegraph.app/livefeed/internal/feed"
)

var ErrClosed = errors.New("hub closed")

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultSendBuffer        = 64
)

// SnapshotSource provides the full run table sent to new subscribers.
type SnapshotSource interface {
	Runs() []feed.Run
}

type Config struct {
	HeartbeatInterval time.Duration
	SendBuffer        int // Per-subscriber queue; messages are dropped when it is full
}

// Subscriber is one live connection. Transports drain Messages until Done is closed.
type Subscriber struct {
	ID        int64
	Transport string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
}

func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

// Done is closed when the hub drops the subscriber (leave or shutdown).
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Dropped counts messages discarded because the subscriber fell behind.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// trySend never blocks; a full queue means the message is lost for this subscriber only.
func (s *Subscriber) trySend(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- data:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Hub keeps the subscriber set and broadcasts to it.
type Hub struct {
	source SnapshotSource
	cfg    Config

	mu          sync.RWMutex
	subscribers map[int64]*Subscriber
	closed      bool

	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(source SnapshotSource, cfg Config) *Hub {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	return &Hub{
		source:      source,
		cfg:         cfg,
		subscribers: make(map[int64]*Subscriber),
		stopCh:      make(chan struct{}),
		stoppedCh:   make(chan struct{}),
	}
}

// Join registers a subscriber and queues the current run table as its first message.
func (h *Hub) Join(ctx context.Context, transport string) (*Subscriber, error) {
	sub := &Subscriber{
		ID:        id.New(),
		Transport: transport,
		send:      make(chan []byte, h.cfg.SendBuffer),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}

	// Snapshot under the hub lock so no update can slip in ahead of it.
	runs := h.source.Runs()
	if runs == nil {
		runs = []feed.Run{}
	}
	data, err := json.Marshal(Message{Type: TypeRuns, Data: runs})
	if err != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("encoding run snapshot: %w", err)
	}
	h.subscribers[sub.ID] = sub
	sub.trySend(data)
	total := len(h.subscribers)
	h.mu.Unlock()

	ctx = logger.WithLogFields(ctx, logger.LogFields{SubscriberID: logger.Ptr(sub.ID)})
	slog.InfoContext(ctx, "subscriber connected",
		"transport", transport,
		"runs", len(runs),
		"total", total)

	return sub, nil
}

// Leave removes a subscriber after its transport closed or errored. Safe to call twice.
func (h *Hub) Leave(ctx context.Context, sub *Subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[sub.ID]
	delete(h.subscribers, sub.ID)
	total := len(h.subscribers)
	h.mu.Unlock()

	sub.close()

	if ok {
		ctx = logger.WithLogFields(ctx, logger.LogFields{SubscriberID: logger.Ptr(sub.ID)})
		slog.InfoContext(ctx, "subscriber disconnected",
			"transport", sub.Transport,
			"dropped", sub.Dropped(),
			"total", total)
	}
}

// Broadcast pushes msg to every subscriber without blocking and returns how
// many accepted it.
func (h *Hub) Broadcast(ctx context.Context, msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode broadcast", "type", msg.Type, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subscribers {
		if sub.trySend(data) {
			delivered++
			continue
		}
		slog.DebugContext(ctx, "subscriber behind, message dropped",
			"subscriber_id", sub.ID,
			"type", msg.Type)
	}
	return delivered
}

func (h *Hub) PublishActivity(ctx context.Context, item feed.ActivityItem) {
	h.Broadcast(ctx, Message{Type: TypeActivity, Data: item})
}

func (h *Hub) PublishRun(ctx context.Context, run feed.Run) {
	h.Broadcast(ctx, Message{Type: TypeRunUpdate, Data: run})
}

// Run sends a heartbeat to every subscriber each interval until Stop or ctx ends.
func (h *Hub) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "livefeed.hub",
	})

	defer close(h.stoppedCh)

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.Broadcast(ctx, Message{Type: TypePing})
		}
	}
}

// Stop ends the heartbeat loop started by Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	<-h.stoppedCh
}

// Close drops every subscriber and rejects new ones. Transports see Done and
// close their connections; pending writes are not awaited.
func (h *Hub) Close(ctx context.Context) {
	h.mu.Lock()
	h.closed = true
	subs := h.subscribers
	h.subscribers = make(map[int64]*Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	slog.InfoContext(ctx, "closed all subscribers", "count", len(subs))
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
