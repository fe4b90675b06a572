package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snappedhq/postqueue/app/api"
	"github.com/snappedhq/postqueue/app/cfg"
	"github.com/snappedhq/postqueue/app/clients"
	"github.com/snappedhq/postqueue/app/database"
	"github.com/snappedhq/postqueue/app/dispatch"
	"github.com/snappedhq/postqueue/app/queue"
	"github.com/snappedhq/postqueue/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting PostQueue", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := clients.NewConfigCache(appCfg.ClientsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load client configurations", "dir", appCfg.ClientsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Client configurations loaded", "count", configCache.GetConfigCount())

	uploadRepo := database.NewUploadRepository(db)
	queueRepo := database.NewQueueRepository(db)

	builder := queue.NewBuilder(uploadRepo, queueRepo, configCache)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	makeDispatcher := dispatch.NewDispatcher(queueRepo, httpClient)

	var zapierDispatcher *dispatch.Dispatcher
	if appCfg.ZapierWebhookURL != "" {
		zapierDispatcher = dispatch.NewWebhookDispatcher(queueRepo, httpClient, appCfg.ZapierWebhookURL)
	}

	// One-shot modes for cron-driven deployments
	if appCfg.BuildOnce || appCfg.DispatchOnce {
		runOnce(appCfg, builder, makeDispatcher)
		return
	}

	scheduler := tasks.NewScheduler(builder, makeDispatcher, queueRepo)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount,
		"build_hour_utc", appCfg.BuildHourUTC, "dispatch_hour_utc", appCfg.DispatchHourUTC)

	handler := api.NewHandler(uploadRepo, queueRepo, configCache, builder, makeDispatcher, zapierDispatcher, scheduler)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}

// runOnce executes the requested one-shot runs for every content kind
// and exits. Exits non-zero when any run fails, so cron notices.
func runOnce(appCfg *cfg.Cfg, builder *queue.Builder, dispatcher *dispatch.Dispatcher) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	failed := false
	now := time.Now().UTC()

	if appCfg.BuildOnce {
		for _, kind := range database.AllKinds {
			result, err := builder.Run(ctx, now, kind, "")
			if err != nil {
				slog.Error("Queue build failed", "kind", string(kind), "error", err)
				failed = true
				continue
			}
			slog.Info("Queue built", "kind", string(kind), "queue_date", result.QueueDate,
				"clients", len(result.ClientQueues), "posts", result.TotalPosts)
		}
	}

	if appCfg.DispatchOnce {
		for _, kind := range database.AllKinds {
			if !dispatcher.HasSender(kind) {
				slog.Debug("No webhook configured for kind, skipping", "kind", string(kind))
				continue
			}
			if err := dispatcher.ProcessQueues(ctx, "", kind); err != nil {
				slog.Error("Queue dispatch failed", "kind", string(kind), "error", err)
				failed = true
			}
		}
	}

	if failed {
		os.Exit(1)
	}
}
