package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/commerceops/opsdash/internal/inventory"
	jobmetrics "github.com/commerceops/opsdash/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReorderRefresher is satisfied by *inventory.Service.
type ReorderRefresher interface {
	RefreshReorderPoints(ctx context.Context, now time.Time) ([]inventory.Alert, error)
}

// ReorderRefreshJob recomputes and stores reorder points nightly.
type ReorderRefreshJob struct {
	Inventory ReorderRefresher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewReorderRefreshJob wires dependencies for the refresh handler.
func NewReorderRefreshJob(inv ReorderRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReorderRefreshJob {
	return &ReorderRefreshJob{Inventory: inv, Logger: logger, Metrics: metrics}
}

// Handle processes TaskReorderRefresh tasks.
func (j *ReorderRefreshJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Inventory == nil {
		return errors.New("reorder refresh: handler not configured")
	}
	var payload ReorderRefreshPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskReorderRefresh)
	defer func() {
		err = tracker.End(err)
	}()

	logger := loggerOrDefault(j.Logger)
	start := time.Now()
	alerts, err := j.Inventory.RefreshReorderPoints(ctx, payload.AsOf)
	if err != nil {
		logger.Error("reorder refresh failed", slog.Any("error", err))
		return err
	}

	byRisk := make(map[string]int)
	for _, a := range alerts {
		byRisk[a.Risk.String()]++
	}
	for risk, n := range byRisk {
		metricsOrDefault(j.Metrics).AddReorderAlerts(risk, n)
	}
	logger.Info("completed reorder refresh",
		slog.Int("alerts", len(alerts)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
