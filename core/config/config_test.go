package config_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/livefeed/core/config"
)

var envKeys = []string{
	"LIVEFEED_ENV", "PORT", "ACTOR_REDIS_URL", "REDIS_URL", "TELEMETRY_STREAM",
	"FEED_CATCHUP_COUNT", "FEED_BATCH_SIZE", "FEED_BLOCK_TIMEOUT", "FEED_ACTIVITY_CAP",
	"FEED_RUN_RETENTION", "HUB_HEARTBEAT_INTERVAL", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_TRACES_SAMPLER_ARG", "LOG_LEVEL", "LIVEFEED_NODE_ID",
}

var _ = Describe("Load", func() {
	BeforeEach(func() {
		saved := map[string]*string{}
		for _, key := range envKeys {
			if v, ok := os.LookupEnv(key); ok {
				saved[key] = &v
			} else {
				saved[key] = nil
			}
			Expect(os.Unsetenv(key)).To(Succeed())
		}
		// Skip the .env lookup so a developer's local file cannot leak in.
		Expect(os.Setenv("LIVEFEED_ENV", "test")).To(Succeed())

		DeferCleanup(func() {
			for key, v := range saved {
				if v == nil {
					_ = os.Unsetenv(key)
				} else {
					_ = os.Setenv(key, *v)
				}
			}
		})
	})

	It("applies the documented defaults", func() {
		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Port).To(Equal("3100"))
		Expect(cfg.Redis.URL).To(Equal("redis://127.0.0.1:6379"))
		Expect(cfg.Redis.Stream).To(Equal("telemetry:events"))
		Expect(cfg.Feed.CatchUpCount).To(Equal(int64(100)))
		Expect(cfg.Feed.BatchSize).To(Equal(int64(20)))
		Expect(cfg.Feed.Block).To(Equal(2 * time.Second))
		Expect(cfg.Feed.ReconnectDelay).To(Equal(2 * time.Second))
		Expect(cfg.Feed.ErrorBackoff).To(Equal(5 * time.Second))
		Expect(cfg.Feed.ActivityCap).To(Equal(50))
		Expect(cfg.Feed.RunRetention).To(Equal(time.Hour))
		Expect(cfg.Hub.HeartbeatInterval).To(Equal(30 * time.Second))
		Expect(cfg.OTel.Enabled()).To(BeFalse())
		Expect(cfg.OTel.SampleRatio).To(Equal(1.0))
		Expect(cfg.LogLevel).To(BeEmpty())
		Expect(cfg.NodeID).To(Equal(int64(1)))
	})

	It("keeps the sampling ratio within 0..1", func() {
		Expect(os.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")).To(Succeed())
		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.OTel.SampleRatio).To(Equal(0.25))

		Expect(os.Setenv("OTEL_TRACES_SAMPLER_ARG", "3")).To(Succeed())
		cfg, err = config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.OTel.SampleRatio).To(Equal(1.0))
	})

	It("prefers ACTOR_REDIS_URL over REDIS_URL", func() {
		Expect(os.Setenv("REDIS_URL", "redis://fallback:6379")).To(Succeed())
		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Redis.URL).To(Equal("redis://fallback:6379"))

		Expect(os.Setenv("ACTOR_REDIS_URL", "redis://actor:6379")).To(Succeed())
		cfg, err = config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Redis.URL).To(Equal("redis://actor:6379"))
	})

	It("reads overrides and ignores unparseable values", func() {
		Expect(os.Setenv("FEED_ACTIVITY_CAP", "10")).To(Succeed())
		Expect(os.Setenv("FEED_RUN_RETENTION", "15m")).To(Succeed())
		Expect(os.Setenv("HUB_HEARTBEAT_INTERVAL", "soon")).To(Succeed())

		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Feed.ActivityCap).To(Equal(10))
		Expect(cfg.Feed.RunRetention).To(Equal(15 * time.Minute))
		Expect(cfg.Hub.HeartbeatInterval).To(Equal(30 * time.Second))
	})

	It("rejects an empty stream name", func() {
		Expect(os.Setenv("TELEMETRY_STREAM", "")).To(Succeed())
		_, err := config.Load()
		Expect(err).To(HaveOccurred())
	})

	It("rejects a non-positive batch size", func() {
		Expect(os.Setenv("FEED_BATCH_SIZE", "0")).To(Succeed())
		_, err := config.Load()
		Expect(err).To(HaveOccurred())
	})

	It("reports the environment", func() {
		Expect(os.Setenv("LIVEFEED_ENV", "production")).To(Succeed())
		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.IsProduction()).To(BeTrue())
		Expect(cfg.IsDevelopment()).To(BeFalse())
	})
})
