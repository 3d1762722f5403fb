// Command emit writes one scripted run to the telemetry stream for local testing.
//
//	go run ./cmd/emit "Fix the flaky deploy step"
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"basegraph.app/livefeed/common/logger"
	"basegraph.app/livefeed/core/config"
	"basegraph.app/livefeed/internal/telemetry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const stepDelay = 400 * time.Millisecond

func main() {
	ctx := context.Background()
	if err := run(ctx, strings.Join(os.Args[1:], " ")); err != nil {
		slog.ErrorContext(ctx, "emit failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, task string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Setup(cfg)

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	producer := telemetry.NewRedisProducer(redisClient, cfg.Redis.Stream, slog.Default())
	defer producer.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	if task == "" {
		task = "Investigate the failing deploy and fix the config"
	}
	runID := uuid.NewString()

	ctx = logger.WithLogFields(ctx, logger.LogFields{RunID: logger.Ptr(runID), Component: "livefeed.emit"})

	for _, evt := range script(runID, task) {
		if _, err := producer.Publish(ctx, evt); err != nil {
			return fmt.Errorf("publish %s: %w", evt.Type, err)
		}
		time.Sleep(stepDelay)
	}

	fmt.Printf("emitted run %s to %s\n", runID, cfg.Redis.Stream)
	return nil
}

// script mixes canonical names with the actor runtime's names and envelopes
// so every decoder path gets exercised.
func script(runID, task string) []telemetry.Event {
	return []telemetry.Event{
		{Type: "message_received", RunID: runID, MessageType: "TaskRequest", Data: map[string]any{
			"payload": map[string]any{"task": task},
		}},
		{Type: "llm_start", RunID: runID},
		{Type: "llm.done", RunID: runID},
		{Type: "tool_start", RunID: runID, Data: map[string]any{"tool": "read", "path": "deploy/config.yaml"}},
		{Type: "tool_end", RunID: runID, Data: map[string]any{"tool": "read"}},
		{Type: "tool.start", RunID: runID, Data: map[string]any{"tool": "bash", "commandPreview": "go test ./..."}},
		{Type: "tool.error", RunID: runID, Data: map[string]any{"tool": "bash", "error": "exit status 1"}},
		{Type: "subagent.spawn", RunID: runID, Data: map[string]any{"role": "reviewer"}},
		{Type: "subagent.done", RunID: runID},
		{Type: "tool.start", RunID: runID, Data: map[string]any{"tool": "edit", "path": "deploy/config.yaml"}},
		{Type: "tool.done", RunID: runID, Data: map[string]any{"tool": "edit"}},
		{Type: "message_sent", RunID: runID, MessageType: "TaskResult", Data: map[string]any{
			"payload": map[string]any{"status": "ok"},
		}},
	}
}
