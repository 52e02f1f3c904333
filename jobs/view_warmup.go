package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/commerceops/opsdash/internal/analytics"
	"github.com/commerceops/opsdash/internal/inventory"
	jobmetrics "github.com/commerceops/opsdash/internal/jobs"
)

// InventoryViewer is satisfied by *inventory.Service.
type InventoryViewer interface {
	ComputeView(ctx context.Context, filter inventory.Filter, key inventory.SortKey) (inventory.View, error)
}

// PerformanceReporter is satisfied by *analytics.Service.
type PerformanceReporter interface {
	ProductPerformance(ctx context.Context, windowDays int) (analytics.Report, error)
}

// ViewWarmupJob fills the view caches ahead of the first dashboard hit.
type ViewWarmupJob struct {
	Inventory InventoryViewer
	Analytics PerformanceReporter
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewViewWarmupJob wires dependencies for the warmup handler.
func NewViewWarmupJob(inv InventoryViewer, perf PerformanceReporter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ViewWarmupJob {
	return &ViewWarmupJob{Inventory: inv, Analytics: perf, Logger: logger, Metrics: metrics}
}

// Handle processes TaskViewWarmup tasks.
func (j *ViewWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("view warmup: handler not configured")
	}
	var payload ViewWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if len(payload.WindowDays) == 0 {
		payload.WindowDays = []int{30}
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskViewWarmup)
	defer func() {
		err = tracker.End(err)
	}()

	logger := loggerOrDefault(j.Logger)
	warmCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if j.Inventory != nil {
		if _, err := j.Inventory.ComputeView(warmCtx, inventory.Filter{}, inventory.SortRisk); err != nil {
			logger.Error("warm inventory view", slog.Any("error", err))
			return err
		}
	}
	if j.Analytics != nil {
		for _, window := range payload.WindowDays {
			if _, err := j.Analytics.ProductPerformance(warmCtx, window); err != nil {
				logger.Error("warm product performance", slog.Int("window_days", window), slog.Any("error", err))
				return err
			}
		}
	}
	logger.Info("completed view warmup", slog.Int("windows", len(payload.WindowDays)))
	return nil
}
