package hub

import "basegraph.app/livefeed/internal/feed"

// MessageType is the discriminator of messages pushed to subscribers.
type MessageType string

const (
	TypeRuns      MessageType = "runs"
	TypeRunUpdate MessageType = "run.update"
	TypeActivity  MessageType = "activity"
	TypePing      MessageType = "ping"
)

// Message is the envelope written to every subscriber transport.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data,omitempty"`
}

// Typed variants of Message, used to describe the protocol (see /api/schema).
type (
	RunsMessage struct {
		Type MessageType `json:"type" jsonschema:"enum=runs"`
		Data []feed.Run  `json:"data"`
	}
	RunUpdateMessage struct {
		Type MessageType `json:"type" jsonschema:"enum=run.update"`
		Data feed.Run    `json:"data"`
	}
	ActivityMessage struct {
		Type MessageType       `json:"type" jsonschema:"enum=activity"`
		Data feed.ActivityItem `json:"data"`
	}
	PingMessage struct {
		Type MessageType `json:"type" jsonschema:"enum=ping"`
	}
)
