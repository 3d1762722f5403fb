package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is a producer-side telemetry event in the wire shape consumers expect.
type Event struct {
	Type        string
	RunID       string
	TS          time.Time
	MessageType string
	Data        map[string]any
}

type Producer interface {
	Publish(ctx context.Context, evt Event) (string, error)
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Publish(ctx context.Context, evt Event) (string, error) {
	values, err := EncodeEvent(evt)
	if err != nil {
		return "", err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd (stream=%s): %w", p.stream, err)
	}

	p.logger.DebugContext(ctx, "published telemetry event", "id", id, "type", evt.Type, "run_id", evt.RunID)
	return id, nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

// EncodeEvent flattens an event into the ordered field pairs written to the stream.
func EncodeEvent(evt Event) ([]string, error) {
	ts := evt.TS
	if ts.IsZero() {
		ts = time.Now()
	}

	values := []string{
		"type", evt.Type,
		"ts", strconv.FormatInt(ts.UnixMilli(), 10),
		"runId", evt.RunID,
	}
	if evt.MessageType != "" {
		values = append(values, "messageType", evt.MessageType)
	}
	if len(evt.Data) > 0 {
		data, err := json.Marshal(evt.Data)
		if err != nil {
			return nil, fmt.Errorf("encoding event data: %w", err)
		}
		values = append(values, "data", string(data))
	}
	return values, nil
}
