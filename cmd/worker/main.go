package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/commerceops/opsdash/internal/analytics"
	"github.com/commerceops/opsdash/internal/app"
	"github.com/commerceops/opsdash/internal/inventory"
	jobmetrics "github.com/commerceops/opsdash/internal/jobs"
	"github.com/commerceops/opsdash/internal/orders"
	"github.com/commerceops/opsdash/internal/platform/cache"
	"github.com/commerceops/opsdash/internal/platform/db"
	"github.com/commerceops/opsdash/internal/shared"
	"github.com/commerceops/opsdash/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	orderRepo := orders.NewRepository(pool)
	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, orderRepo, shared.NewAuditLogger(pool),
		cache.NewVersioned(redisClient, "inventory", cfg.CacheTTL),
		inventory.ServiceConfig{
			Settings: inventory.Settings{
				VelocityWindowDays:     cfg.VelocityWindowDays,
				DefaultLeadTimeDays:    cfg.DefaultLeadTimeDays,
				DefaultSafetyStockDays: cfg.DefaultSafetyStockDays,
			},
			Logger: logger,
		})
	analyticsService := analytics.NewService(inventoryRepo, orderRepo,
		cache.NewVersioned(redisClient, "analytics", cfg.CacheTTL),
		analytics.ServiceConfig{Logger: logger})

	refreshJob := jobs.NewReorderRefreshJob(inventoryService, logger, metrics)
	warmupJob := jobs.NewViewWarmupJob(inventoryService, analyticsService, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger, metrics)

	refreshTask, err := jobs.NewReorderRefreshTask(time.Time{})
	if err != nil {
		logger.Error("build reorder refresh task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewViewWarmupTask(7, 30, 90)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(7 * 24 * time.Hour)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReorderRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskViewWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: refreshTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
