package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"agrego/internal/infrastructure/postgres/listener"
	"agrego/internal/interfaces/scheduler"
	"agrego/internal/shared/config"
	"agrego/internal/shared/logger"
	"agrego/internal/shared/telemetry"
)

func main() {
	// Missing .env is fine in production; config falls back to the
	// real environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatalw("failed to load configuration", "error", err)
	}

	logger.Init(cfg.Environment)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Get().Fatalw("application error", "error", err)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		})
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Get().Errorw("telemetry shutdown error", "error", err)
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	handler, err := SetupRoutes(deps, cfg)
	if err != nil {
		return err
	}

	// Nightly full syncs through the worker pool
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(scheduler.Config{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			WorkerCount:   cfg.Scheduler.WorkerCount,
			JobDelay:      cfg.Scheduler.JobDelay,
			QueueSize:     cfg.Scheduler.QueueSize,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
			JobProvider:   scheduler.SyncJobProvider(deps.CredentialRepo, deps.SyncService),
		})
		if err != nil {
			return err
		}
		sched.Start()
	}

	// Database NOTIFY bridge for sync requests from sibling services
	syncListener := listener.NewSyncListener(cfg.Database.ConnectionString(), deps.SyncService)
	syncListener.Start(ctx)
	defer syncListener.Stop()

	srv := StartServer(cfg.Server.Host+":"+cfg.Server.Port, handler)

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	GracefulShutdown(srv, sched, 30*time.Second)
	return nil
}
