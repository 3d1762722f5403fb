package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OTel     OTelConfig
	Redis    RedisConfig
	Feed     FeedConfig
	Hub      HubConfig
	WS       WSConfig
	Env      string
	Port     string
	LogLevel string // debug, info, warn or error; empty picks by environment
	NodeID   int64  // Snowflake node, distinct per replica
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64 // Fraction of ingest traces kept, 0..1
}

type RedisConfig struct {
	URL    string
	Stream string
}

// FeedConfig controls stream consumption and run retention.
type FeedConfig struct {
	CatchUpCount   int64         // Records replayed from the stream tail on startup
	BatchSize      int64         // Max records per blocking read
	Block          time.Duration // Wait per blocking read
	ReconnectDelay time.Duration // Backoff after a connection reset/closed error
	ErrorBackoff   time.Duration // Backoff after any other read error
	ActivityCap    int           // Activities retained per run
	RunRetention   time.Duration // How long terminal runs stay in memory
	SweepInterval  time.Duration
}

type HubConfig struct {
	HeartbeatInterval time.Duration
	SendBuffer        int
}

type WSConfig struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
}

// Load loads configuration from environment variables.
// In development it also reads a local .env file if one exists.
func Load() (Config, error) {
	if getEnv("LIVEFEED_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:      getEnv("LIVEFEED_ENV", "development"),
		Port:     getEnv("PORT", "3100"),
		LogLevel: getEnv("LOG_LEVEL", ""),
		NodeID:   getEnvInt64("LIVEFEED_NODE_ID", 1),
		Redis: RedisConfig{
			URL:    getEnv("ACTOR_REDIS_URL", getEnv("REDIS_URL", "redis://127.0.0.1:6379")),
			Stream: getEnv("TELEMETRY_STREAM", "telemetry:events"),
		},
		Feed: FeedConfig{
			CatchUpCount:   getEnvInt64("FEED_CATCHUP_COUNT", 100),
			BatchSize:      getEnvInt64("FEED_BATCH_SIZE", 20),
			Block:          getEnvDuration("FEED_BLOCK_TIMEOUT", 2*time.Second),
			ReconnectDelay: getEnvDuration("FEED_RECONNECT_DELAY", 2*time.Second),
			ErrorBackoff:   getEnvDuration("FEED_ERROR_BACKOFF", 5*time.Second),
			ActivityCap:    getEnvInt("FEED_ACTIVITY_CAP", 50),
			RunRetention:   getEnvDuration("FEED_RUN_RETENTION", time.Hour),
			SweepInterval:  getEnvDuration("FEED_SWEEP_INTERVAL", time.Minute),
		},
		Hub: HubConfig{
			HeartbeatInterval: getEnvDuration("HUB_HEARTBEAT_INTERVAL", 30*time.Second),
			SendBuffer:        getEnvInt("HUB_SEND_BUFFER", 64),
		},
		WS: WSConfig{
			WriteTimeout:   getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			PongTimeout:    getEnvDuration("WS_PONG_TIMEOUT", 60*time.Second),
			MaxMessageSize: getEnvInt64("WS_MAX_MESSAGE_SIZE", 4096),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "livefeed"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	if cfg.Redis.Stream == "" {
		return Config{}, fmt.Errorf("TELEMETRY_STREAM must not be empty")
	}

	if cfg.Feed.BatchSize <= 0 || cfg.Feed.CatchUpCount < 0 {
		return Config{}, fmt.Errorf("FEED_BATCH_SIZE must be positive and FEED_CATCHUP_COUNT non-negative")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 && f <= 1 {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
