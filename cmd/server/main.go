package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/saveleva/disasterai/internal/analysis"
	"github.com/saveleva/disasterai/internal/api"
	"github.com/saveleva/disasterai/internal/config"
	"github.com/saveleva/disasterai/internal/feeds"
	"github.com/saveleva/disasterai/internal/logging"
	"github.com/saveleva/disasterai/internal/monitor"
	"github.com/saveleva/disasterai/internal/processor"
	"github.com/saveleva/disasterai/internal/realtime"
	"github.com/saveleva/disasterai/internal/store"
)

func main() {
	// A missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.Setup(cfg.Server.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var durable store.TaskStore
	redisStore, err := store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Tasks.Retention)
	if err != nil {
		logger.Warn("Redis unreachable, task records will live in memory only",
			"addr", cfg.Redis.Addr, "error", err)
	} else {
		durable = redisStore
		defer redisStore.Close()
		logger.Info("Connected to Redis", "addr", cfg.Redis.Addr)
	}
	taskStore := store.NewResilient(durable, logger)

	analyzer, err := analysis.NewGemini(ctx, cfg.Gemini, logger)
	if err != nil {
		log.Fatalf("Failed to initialize analyzer: %v", err)
	}

	hub := realtime.NewHub(logger)
	notifier := realtime.NewNotifier(hub, logger)
	wsHandler := realtime.NewWSHandler(hub, logger)

	disasterMonitor := monitor.New(logger)
	alertService := monitor.NewAlertService([]monitor.Channel{
		monitor.NewWebhookChannel(cfg.Alerts.WebhookURLs, logger),
		monitor.NewEmailChannel(logger),
		monitor.NewSMSChannel(logger),
		monitor.NewPushChannel(logger),
	}, logger)

	proc := processor.New(taskStore, analyzer, logger)
	proc.SetCompletionHandler(func(taskID string, result *analysis.Result) {
		events := disasterMonitor.DetectFromAnalysis(result)
		for _, event := range events {
			notifier.NotifyNewDisaster(event)
			alert := alertService.ProcessEvent(context.Background(), event)
			notifier.NotifyNewAlert(realtime.AlertPayload{
				AlertID:  alert.AlertID,
				EventID:  alert.EventID,
				Level:    string(alert.AlertLevel),
				Message:  alert.Message,
				Priority: int(alert.Priority),
			})
		}
	})

	statsPublisher := realtime.NewStatsPublisher(notifier, func(context.Context) (any, error) {
		stats := disasterMonitor.SummaryStatistics()
		stats["connected_clients"] = hub.ClientCount()
		return stats, nil
	}, cfg.Stats.Interval, logger)
	go statsPublisher.Run(ctx)

	liveFeeds := feeds.NewService(logger)

	handler := api.NewHandler(taskStore, proc, analyzer, disasterMonitor, alertService, hub, wsHandler, liveFeeds, logger)
	router := api.NewRouter(handler, cfg.Server.CORSOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	proc.Stop()

	removed := taskStore.Cleanup(shutdownCtx, cfg.Tasks.Retention)
	logger.Info("Server stopped", "tasks_cleaned", removed)
}
