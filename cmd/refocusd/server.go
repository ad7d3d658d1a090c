package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodtune/refocus/internal/activity"
	"github.com/goodtune/refocus/internal/api"
	"github.com/goodtune/refocus/internal/clock"
	"github.com/goodtune/refocus/internal/config"
	"github.com/goodtune/refocus/internal/domains"
	"github.com/goodtune/refocus/internal/history"
	"github.com/goodtune/refocus/internal/metrics"
	"github.com/goodtune/refocus/internal/notify"
	"github.com/goodtune/refocus/internal/storage/redis"
	"github.com/goodtune/refocus/internal/switches"
	"github.com/goodtune/refocus/internal/systemd"
	"github.com/goodtune/refocus/internal/tabs"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start Refocus server",
	Long:  `Start the Refocus server with the extension API and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Refocus")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to get systemd listeners")
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	clk := clock.RealClock{}
	matcher := domains.NewMatcher(cfg.Tracking.Domains)

	tabRegistry, err := tabs.NewRegistry(cfg.Tracking.TabCacheSize, clk, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tab registry: %w", err)
	}

	// Notifications always reach pages through the local hub. With the
	// redis transport, switch warnings are published to Redis instead and
	// every refocusd instance feeds its own hub from the subscription.
	hub := notify.NewHub(logger)
	var sender notify.Sender = hub

	subCtx, cancelSub := context.WithCancel(context.Background())
	defer cancelSub()

	if cfg.Notify.Transport == "redis" {
		redisStore, ok := store.(*redis.Store)
		if !ok {
			return fmt.Errorf("notify transport redis requires redis storage")
		}
		subscriber := notify.NewRedisSubscriber(redisStore.Client(), hub, logger)
		if err := subscriber.Subscribe(subCtx); err != nil {
			return fmt.Errorf("failed to subscribe to notifications: %w", err)
		}
		sender = notify.NewRedisPublisher(redisStore.Client(), logger)
	}

	logger.Info().
		Str("transport", cfg.Notify.Transport).
		Strs("domains", matcher.Domains()).
		Msg("Notification hub initialized")

	// Initialize monitors
	pages := activity.NewRegistry(activityConfig(cfg), activity.Deps{
		Clock:    clk,
		Counters: store.Counters(),
		History:  store.Warnings(),
		Logger:   logger,
	}, matcher, hub)

	switchMonitor := switches.NewMonitor(
		switchesConfig(cfg),
		clk,
		store.Counters(),
		tabRegistry,
		matcher,
		sender,
		logger,
	)

	logger.Info().Msg("Monitors initialized")

	// Initialize history retention
	retention, err := history.NewRetention(
		store.Warnings(),
		cfg.Warnings.HistoryRetentionDays,
		cfg.Warnings.CleanupTime,
		clk,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize history retention: %w", err)
	}

	retention.Start()
	logger.Info().Msg("History retention initialized")

	// Initialize API Server
	apiConfig := api.Config{
		ListenAddr:      fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort),
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: config.Duration(cfg.Server.RateLimitWindow, time.Minute),
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}

	apiServer := api.NewServer(apiConfig, api.Deps{
		Counters:   store.Counters(),
		History:    store.Warnings(),
		Switches:   switchMonitor,
		Tabs:       tabRegistry,
		Pages:      pages,
		Matcher:    matcher,
		Thresholds: popupThresholds(cfg),
	}, logger)

	// Use systemd socket-activated listener if available
	if sdListeners.Activated && sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}

	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API Server: %w", err)
	}

	logger.Info().
		Str("addr", apiConfig.ListenAddr).
		Msg("API Server started")

	// Initialize Metrics Server (port 0 disables it)
	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 || sdListeners.Metrics != nil {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)

		if sdListeners.Activated && sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}

		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}

		logger.Info().
			Str("addr", metricsAddr).
			Msg("Metrics Server started")
	}

	// Log startup complete
	logger.Info().Msg("Refocus startup complete")
	logger.Info().Msgf("Extension API: http://%s:%d/api/v1", cfg.Server.BindAddress, cfg.Server.APIPort)
	if metricsServer != nil {
		logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	}

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	// Wait for signals (shutdown or history cleanup)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan

		if sig == syscall.SIGHUP {
			logger.Info().Msg("SIGHUP received, pruning warning history...")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			deleted, err := retention.Cleanup(ctx)
			cancel()
			if err != nil {
				logger.Error().Err(err).Msg("Failed to prune warning history")
			} else {
				logger.Info().Int("deleted", deleted).Msg("Warning history pruned")
			}
			continue
		}

		logger.Info().Msg("Shutdown signal received, gracefully stopping...")
		break
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop servers
	retention.Stop()

	// Stop page timers before the API goes away.
	pages.CloseAll()

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API Server")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	cancelSub()

	logger.Info().Msg("Refocus stopped")

	return nil
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
