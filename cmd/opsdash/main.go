package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/commerceops/opsdash/cmd/opsdash/cli"
	"github.com/commerceops/opsdash/internal/analytics"
	analytichttp "github.com/commerceops/opsdash/internal/analytics/http"
	"github.com/commerceops/opsdash/internal/app"
	"github.com/commerceops/opsdash/internal/audit"
	audithttp "github.com/commerceops/opsdash/internal/audit/http"
	"github.com/commerceops/opsdash/internal/inventory"
	"github.com/commerceops/opsdash/internal/observability"
	"github.com/commerceops/opsdash/internal/orders"
	"github.com/commerceops/opsdash/internal/platform/cache"
	"github.com/commerceops/opsdash/internal/platform/db"
	"github.com/commerceops/opsdash/internal/procurement"
	"github.com/commerceops/opsdash/internal/returns"
	"github.com/commerceops/opsdash/internal/shared"
	"github.com/commerceops/opsdash/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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
	slog.SetDefault(logger)

	if len(os.Args) > 1 {
		os.Exit(runCommand(ctx, cfg, logger, os.Args[1:]))
	}

	if cfg.PGAutoMigrate {
		if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, view caching disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)
	orderRepo := orders.NewRepository(pool)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryCache := cache.NewVersioned(redisClient, "inventory", cfg.CacheTTL)
	inventoryCache.Listen(ctx, func(version int64) {
		logger.Debug("inventory view invalidated", slog.Int64("version", version))
	})
	inventoryService := inventory.NewService(inventoryRepo, orderRepo, auditLogger, inventoryCache, inventory.ServiceConfig{
		Settings: inventory.Settings{
			VelocityWindowDays:     cfg.VelocityWindowDays,
			DefaultLeadTimeDays:    cfg.DefaultLeadTimeDays,
			DefaultSafetyStockDays: cfg.DefaultSafetyStockDays,
		},
		Metrics: metrics,
		Logger:  logger,
	})

	procurementService := procurement.NewService(procurement.NewRepository(pool), auditLogger, idempotency, inventoryService, procurement.ServiceConfig{
		Metrics: metrics,
		Logger:  logger,
	})

	returnsService := returns.NewService(returns.NewRepository(pool), orderRepo, auditLogger, inventoryService, returns.ServiceConfig{
		Costs: returns.CostSettings{
			DefaultShippingCents: cfg.ReturnDefaultShippingCents,
			LabelCents:           cfg.ReturnLabelCents,
			ProcessingCents:      cfg.ReturnProcessingCents,
			KeepItRatioPercent:   cfg.ReturnKeepItRatioPercent,
		},
		Metrics: metrics,
		Logger:  logger,
	})

	analyticsCache := cache.NewVersioned(redisClient, "analytics", cfg.CacheTTL)
	analyticsService := analytics.NewService(inventoryRepo, orderRepo, analyticsCache, analytics.ServiceConfig{Logger: logger})

	var jobHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		inspector := asynq.NewInspector(redisOpts)
		defer func() { _ = inspector.Close() }()
		jobsClient := jobs.NewClient(redisOpts)
		defer func() { _ = jobsClient.Close() }()
		jobHandler = jobs.NewHandler(inspector, jobsClient, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		ReturnsHandler:     returns.NewHandler(logger, returnsService),
		AnalyticsHandler:   analytichttp.NewHandler(logger, analyticsService),
		AuditHandler:       audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(pool))),
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runCommand handles the operational subcommands and returns the exit code.
func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	switch args[0] {
	case "migrate":
		if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			return 1
		}
		logger.Info("migrations applied")
		return 0
	case "jobs":
		jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
		defer func() {
			if err := jobsCLI.Close(); err != nil {
				logger.Warn("close jobs cli", slog.Any("error", err))
			}
		}()
		return jobsCLI.JobsCommand(ctx, cli.JobsOptions{Args: args[1:]})
	default:
		logger.Error("unknown command", slog.String("command", args[0]))
		return 2
	}
}
