package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// LatestID is the cursor meaning "only records appended after the read starts".
const LatestID = "$"

// Record is one stream entry: the store-assigned id plus its flat field list
// (key1, val1, key2, val2, ...).
type Record struct {
	ID     string
	Fields []string
}

// LogStore is the read side of the append-only telemetry log.
type LogStore interface {
	// Recent returns up to count of the newest records, newest first.
	Recent(ctx context.Context, count int64) ([]Record, error)
	// ReadAfter blocks up to block for records strictly after cursor and
	// returns at most count of them in stream order. An empty result is not an error.
	ReadAfter(ctx context.Context, cursor string, count int64, block time.Duration) ([]Record, error)
}

type RedisStream struct {
	client *redis.Client
	stream string
}

func NewRedisStream(client *redis.Client, stream string) *RedisStream {
	return &RedisStream{
		client: client,
		stream: stream,
	}
}

func (s *RedisStream) Name() string {
	return s.stream
}

func (s *RedisStream) Recent(ctx context.Context, count int64) ([]Record, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", count).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("xrevrange (stream=%s): %w", s.stream, err)
	}
	return toRecords(msgs), nil
}

func (s *RedisStream) ReadAfter(ctx context.Context, cursor string, count int64, block time.Duration) ([]Record, error) {
	if cursor == "" {
		cursor = LatestID
	}

	streams, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{s.stream, cursor},
		Count:   count,
		Block:   block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("xread (stream=%s): %w", s.stream, err)
	}

	var records []Record
	// We only ever read one stream, so this outer loop runs once.
	for _, stream := range streams {
		records = append(records, toRecords(stream.Messages)...)
	}

	if len(records) > 0 {
		slog.DebugContext(ctx, "read records from stream",
			"count", len(records),
			"stream", s.stream)
	}

	return records, nil
}

// Ping reports whether the Redis connection is usable.
func (s *RedisStream) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// go-redis hands stream values back as a map, so the original field order is
// gone by the time we see it. Keys are sorted to keep the flat list deterministic.
func toRecords(msgs []redis.XMessage) []Record {
	records := make([]Record, 0, len(msgs))
	for _, msg := range msgs {
		keys := make([]string, 0, len(msg.Values))
		for k := range msg.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fields := make([]string, 0, len(keys)*2)
		for _, k := range keys {
			fields = append(fields, k, fmt.Sprint(msg.Values[k]))
		}
		records = append(records, Record{ID: msg.ID, Fields: fields})
	}
	return records
}
