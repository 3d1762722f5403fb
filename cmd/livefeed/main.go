package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"basegraph.app/livefeed/common/id"
	"basegraph.app/livefeed/common/logger"
	"basegraph.app/livefeed/common/otel"
	"basegraph.app/livefeed/core/config"
	"basegraph.app/livefeed/internal/feed"
	"basegraph.app/livefeed/internal/http/middleware"
	httprouter "basegraph.app/livefeed/internal/http/router"
	"basegraph.app/livefeed/internal/hub"
	"basegraph.app/livefeed/internal/telemetry"
	"basegraph.app/livefeed/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	tel, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if tel != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "livefeed starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err, "node_id", cfg.NodeID)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	stream := telemetry.NewRedisStream(redisClient, cfg.Redis.Stream)

	// The stream loop retries on its own, so an unreachable Redis only delays readiness.
	if err := stream.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "redis not reachable yet, will keep retrying", "error", err)
	} else {
		slog.InfoContext(ctx, "redis connected", "stream", stream.Name())
	}

	table := feed.NewRunTable(feed.TableConfig{
		ActivityCap: cfg.Feed.ActivityCap,
		Retention:   cfg.Feed.RunRetention,
	})

	feedHub := hub.New(table, hub.Config{
		HeartbeatInterval: cfg.Hub.HeartbeatInterval,
		SendBuffer:        cfg.Hub.SendBuffer,
	})
	table.SetPublisher(feedHub)

	bridge := feed.NewBridge(stream, table, feed.BridgeConfig{
		CatchUpCount:   cfg.Feed.CatchUpCount,
		BatchSize:      cfg.Feed.BatchSize,
		Block:          cfg.Feed.Block,
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		ErrorBackoff:   cfg.Feed.ErrorBackoff,
	})
	sweeper := feed.NewSweeper(table, cfg.Feed.SweepInterval)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	go func() {
		if err := bridge.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(runCtx, "stream bridge exited", "error", err)
		}
	}()
	go sweeper.Run(runCtx)
	go feedHub.Run(runCtx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	wsServer := ws.NewServer(feedHub, ws.Config{
		WriteTimeout:   cfg.WS.WriteTimeout,
		PongTimeout:    cfg.WS.PongTimeout,
		MaxMessageSize: cfg.WS.MaxMessageSize,
	})

	router := setupRouter(cfg, httprouter.Deps{
		Runs:      table,
		Stream:    bridge,
		Redis:     stream,
		Hub:       feedHub,
		WebSocket: wsServer.Handle,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No write timeout: /api/stream responses stay open for the life of the client.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.InfoContext(ctx, "shutting down...", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Closing subscribers first lets SSE handlers return so Shutdown does not wait on them.
	feedHub.Close(shutdownCtx)

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	bridge.Stop()
	sweeper.Stop()
	feedHub.Stop()

	if err := redisClient.Close(); err != nil {
		slog.ErrorContext(shutdownCtx, "redis close error", "error", err)
	}

	if tel != nil {
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, deps httprouter.Deps) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, deps)

	return router
}

const banner = `
██╗     ██╗██╗   ██╗███████╗███████╗███████╗███████╗██████╗
██║     ██║██║   ██║██╔════╝██╔════╝██╔════╝██╔════╝██╔══██╗
██║     ██║██║   ██║█████╗  █████╗  █████╗  █████╗  ██║  ██║
██║     ██║╚██╗ ██╔╝██╔══╝  ██╔══╝  ██╔══╝  ██╔══╝  ██║  ██║
███████╗██║ ╚████╔╝ ███████╗██║     ███████╗███████╗██████╔╝
╚══════╝╚═╝  ╚═══╝  ╚══════╝╚═╝     ╚══════╝╚══════╝╚═════╝
`
