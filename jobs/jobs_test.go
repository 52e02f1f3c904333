package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/commerceops/opsdash/internal/analytics"
	"github.com/commerceops/opsdash/internal/inventory"
	jobmetrics "github.com/commerceops/opsdash/internal/jobs"
)

type fakeRefresher struct {
	asOf   []time.Time
	alerts []inventory.Alert
	err    error
}

func (f *fakeRefresher) RefreshReorderPoints(ctx context.Context, now time.Time) ([]inventory.Alert, error) {
	f.asOf = append(f.asOf, now)
	return f.alerts, f.err
}

func TestReorderRefreshCountsAlertsByRisk(t *testing.T) {
	reg := prometheus.NewRegistry()
	refresher := &fakeRefresher{alerts: []inventory.Alert{
		{ProductID: 1, Risk: inventory.RiskCritical},
		{ProductID: 2, Risk: inventory.RiskCritical},
		{ProductID: 3, Risk: inventory.RiskHigh},
	}}
	job := NewReorderRefreshJob(refresher, nil, jobmetrics.NewMetrics(reg))

	asOf := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	task, err := NewReorderRefreshTask(asOf)
	require.NoError(t, err)
	require.Equal(t, TaskReorderRefresh, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, refresher.asOf, 1)
	require.True(t, refresher.asOf[0].Equal(asOf))

	n, err := testutil.GatherAndCount(reg, "opsdash_reorder_alerts_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestReorderRefreshPropagatesFailure(t *testing.T) {
	boom := errors.New("db down")
	job := NewReorderRefreshJob(&fakeRefresher{err: boom}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewReorderRefreshTask(time.Time{})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

func TestReorderRefreshSkipsRetryOnBadPayload(t *testing.T) {
	job := NewReorderRefreshJob(&fakeRefresher{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskReorderRefresh, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeViewer struct{ calls int }

func (f *fakeViewer) ComputeView(ctx context.Context, filter inventory.Filter, key inventory.SortKey) (inventory.View, error) {
	f.calls++
	return inventory.View{}, nil
}

type fakeReporter struct {
	windows []int
	err     error
}

func (f *fakeReporter) ProductPerformance(ctx context.Context, windowDays int) (analytics.Report, error) {
	f.windows = append(f.windows, windowDays)
	return analytics.Report{}, f.err
}

func TestViewWarmupWarmsEveryWindow(t *testing.T) {
	viewer := &fakeViewer{}
	reporter := &fakeReporter{}
	job := NewViewWarmupJob(viewer, reporter, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewViewWarmupTask(7, 30, 90)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, viewer.calls)
	require.Equal(t, []int{7, 30, 90}, reporter.windows)

	task, err = NewViewWarmupTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int{7, 30, 90, 30}, reporter.windows)
}

func TestViewWarmupStopsOnError(t *testing.T) {
	reporter := &fakeReporter{err: errors.New("timeout")}
	job := NewViewWarmupJob(nil, reporter, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewViewWarmupTask(7, 30)
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
	require.Equal(t, []int{7}, reporter.windows)
}

type fakePruner struct{ olderThan []time.Duration }

func (f *fakePruner) Cleanup(ctx context.Context, olderThan time.Duration) error {
	f.olderThan = append(f.olderThan, olderThan)
	return nil
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	pruner := &fakePruner{}
	job := NewIdempotencyCleanupJob(pruner, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	task, err = NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, []time.Duration{48 * time.Hour, defaultIdempotencyRetention}, pruner.olderThan)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

type fakeEnqueuer struct {
	id  string
	err error
}

func (f fakeEnqueuer) EnqueueReorderRefresh(ctx context.Context) (string, error) {
	return f.id, f.err
}

func serveJobs(h *Handler, method, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestHandlerHealth(t *testing.T) {
	h := NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Active: 1}}, nil, nil)
	rr := serveJobs(h, http.MethodGet, "/jobs/health")
	require.Equal(t, http.StatusOK, rr.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, queueHealth{Queue: QueueDefault, Pending: 4, Active: 1}, body)

	rr = serveJobs(NewHandler(fakeInspector{err: errors.New("redis down")}, nil, nil), http.MethodGet, "/jobs/health")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = serveJobs(NewHandler(nil, nil, nil), http.MethodGet, "/jobs/health")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlerReorderRefresh(t *testing.T) {
	rr := serveJobs(NewHandler(nil, fakeEnqueuer{id: "abc"}, nil), http.MethodPost, "/jobs/reorder-refresh")
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), `"taskId":"abc"`)

	rr = serveJobs(NewHandler(nil, fakeEnqueuer{err: asynq.ErrDuplicateTask}, nil), http.MethodPost, "/jobs/reorder-refresh")
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), "already_queued")

	rr = serveJobs(NewHandler(nil, nil, nil), http.MethodPost, "/jobs/reorder-refresh")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
