package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hypewatch/internal/adapters/config"
	"hypewatch/internal/adapters/errors/noop"
	"hypewatch/internal/adapters/errors/sentry"
	"hypewatch/internal/adapters/upstream"
	"hypewatch/internal/api"
	"hypewatch/internal/api/health"
	"hypewatch/internal/chat"
	"hypewatch/internal/domain/hype"
	"hypewatch/internal/metrics"
	"hypewatch/internal/poller"
	"hypewatch/internal/snapshots"
	"hypewatch/internal/stream"
	"hypewatch/internal/workers"
	"hypewatch/pkg/errors"
	"hypewatch/pkg/logger"
	"hypewatch/pkg/reconnect"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic("invalid config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	store, err := snapshots.New(cfg.Snapshots.DBPath, cfg.Snapshots.MaxSnapshots, log)
	if err != nil {
		log.Fatalf("Failed to open snapshot store: %v", err)
	}
	defer store.Close()

	client, err := upstream.NewClient(upstream.Config{
		BaseURL:        cfg.Upstream.BaseURL,
		Timeout:        cfg.Upstream.Timeout,
		MaxRetries:     cfg.Upstream.MaxRetries,
		RequestsPerSec: cfg.Upstream.RequestsPerSec,
		Burst:          cfg.Upstream.Burst,
	}, log)
	if err != nil {
		log.Fatalf("Failed to create upstream client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Board-level aggregators run as scheduled workers.
	trendingWindow := cfg.Poll.TrendingWindow
	trendingLimit := cfg.Poll.TrendingLimit
	trending := poller.New("trending", cfg.Poll.TrendingInterval,
		func(ctx context.Context) ([]hype.TrendingTicker, error) {
			return client.Trending(ctx, trendingWindow, trendingLimit)
		}, log)
	leaderboard := poller.New("leaderboard", cfg.Poll.LeaderboardInterval,
		func(ctx context.Context) ([]hype.LeaderboardRow, error) {
			return client.Leaderboard(ctx, cfg.Poll.LeaderboardMetric, cfg.Poll.LeaderboardMinCalls, cfg.Poll.LeaderboardWindow)
		}, log)

	scheduler := workers.NewScheduler(log)
	scheduler.Register(trending)
	scheduler.Register(leaderboard)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Live alert ingestion.
	backoff := reconnect.NewManager(reconnect.Config{
		MinBackoff: cfg.Stream.MinBackoff,
		MaxBackoff: cfg.Stream.MaxBackoff,
	})
	supervisor := stream.NewSupervisor(client.LiveAlertsURL(), cfg.Stream.AlertCapacity, client.HTTPClient(), backoff, log)
	supervisor.Start(ctx)
	defer supervisor.Stop()

	orchestrator := chat.New(chat.Config{
		APIKey:  cfg.AI.OpenAIKey,
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
		Timeout: cfg.AI.Timeout,
	}, client)
	if !orchestrator.Ready() {
		log.Warn("OPENAI_API_KEY not set; chat endpoint will answer 500")
	}

	handlers := api.NewHandlers(client, trending, trendingWindow, trendingLimit,
		leaderboard, supervisor.Buffer(), store, orchestrator,
		api.SeriesConfig{
			MentionsInterval: cfg.Poll.MentionsInterval,
			ImpactInterval:   cfg.Poll.ImpactInterval,
			ImpactWindow:     "1d",
		}, log)
	healthHandler := health.New(log, store, trending, supervisor, cfg.App.Name, cfg.App.Version)

	server := api.NewServer(api.ServerConfig{
		Port:        cfg.Server.Port,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	}, handlers, healthHandler, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Errorf("HTTP server error: %v", err)
			cancel()
		}
	}()

	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, server, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, server *api.Server, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP server shutdown: %v", err)
	}

	cancel()

	if errorTracker != nil {
		if err := errorTracker.Flush(shutdownCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
