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

	"github.com/spf13/cobra"

	"github.com/sydlexius/milkcrate/internal/api"
	"github.com/sydlexius/milkcrate/internal/backup"
	"github.com/sydlexius/milkcrate/internal/config"
	"github.com/sydlexius/milkcrate/internal/database"
	"github.com/sydlexius/milkcrate/internal/event"
	"github.com/sydlexius/milkcrate/internal/logging"
	"github.com/sydlexius/milkcrate/internal/maintenance"
	"github.com/sydlexius/milkcrate/internal/source/discogs"
	"github.com/sydlexius/milkcrate/internal/source/roon"
	"github.com/sydlexius/milkcrate/internal/version"
	"github.com/sydlexius/milkcrate/internal/watcher"
	"github.com/sydlexius/milkcrate/internal/webhook"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func runServer(cfg *config.Config) error {
	logger, logCloser := logging.New(cfg.LoggingOptions())
	if logCloser != nil {
		defer logCloser.Close() //nolint:errcheck
	}
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	svc := buildServices(cfg, db, logger)

	go svc.bus.Start()
	defer svc.bus.Stop()

	notifier := webhook.NewNotifier(webhookEndpoints(cfg), logger)
	notifier.Subscribe(svc.bus)

	// New albums or records can change the live-show picture, so
	// rebuild the matches after those syncs land.
	svc.bus.Subscribe(event.SyncCompleted, func(e event.Event) {
		svc.stats.Invalidate()
		src, _ := e.Data["source"].(string)
		if src != roon.SourceAlbums && src != discogs.SourceCollection {
			return
		}
		if _, err := svc.liveShows.Rebuild(context.Background()); err != nil {
			logger.Error("live show rebuild failed", "source", src, "error", err)
		}
	})
	// A failed run may still have applied part of its batch.
	svc.bus.Subscribe(event.SyncFailed, func(event.Event) {
		svc.stats.Invalidate()
	})

	logger.Info("starting milkcrate",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.Any("sources", svc.coordinator.Sources()))

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Watch.Enabled {
		targets := watchTargets(cfg)
		probeCache := watcher.NewProbeCache()
		probeCache.ProbeDirs(ctx, watcher.TargetDirs(targets), logger)

		syncFn := func(ctx context.Context, source string) error {
			_, err := svc.coordinator.Run(ctx, source, false)
			return err
		}
		watchSvc := watcher.NewService(syncFn, targets, probeCache, logger)
		go watchSvc.Start(ctx)
	}

	if cfg.Sync.AutoIntervalHours > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.Sync.AutoIntervalHours) * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					svc.coordinator.RunAll(ctx, false)
				}
			}
		}()
	}

	maintSvc := maintenance.NewService(db, svc.syncStore, cfg.Database.Path, logger)
	go maintSvc.StartScheduler(ctx, 24*time.Hour)

	if cfg.Backup.IntervalHours > 0 {
		backupSvc := backup.NewService(db, cfg.BackupDir(), cfg.Backup.Keep, cfg.Backup.MaxAgeDays, logger)
		go backupSvc.StartScheduler(ctx, time.Duration(cfg.Backup.IntervalHours)*time.Hour)
	}

	router := api.NewRouter(api.RouterDeps{
		Digital:     svc.digital,
		Physical:    svc.physical,
		Unified:     svc.unified,
		Listening:   svc.listening,
		LiveShows:   svc.liveShows,
		Stats:       svc.stats,
		SyncStore:   svc.syncStore,
		Coordinator: svc.coordinator,
		DB:          db,
		Logger:      logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func webhookEndpoints(cfg *config.Config) []webhook.Endpoint {
	endpoints := make([]webhook.Endpoint, 0, len(cfg.Notifications.Webhooks))
	for _, hook := range cfg.Notifications.Webhooks {
		endpoints = append(endpoints, webhook.Endpoint{
			Name:   hook.Name,
			URL:    hook.URL,
			Type:   hook.Type,
			Events: hook.Events,
		})
	}
	return endpoints
}
