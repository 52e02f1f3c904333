package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReorderRefresh persists reorder plans for every active product.
	TaskReorderRefresh = "inventory:reorder_refresh"
	// TaskViewWarmup pre-computes the cached dashboard views.
	TaskViewWarmup = "dashboard:view_warmup"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ReorderRefreshPayload pins the evaluation day. A zero AsOf means now.
type ReorderRefreshPayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// ViewWarmupPayload lists the analytics windows to pre-compute.
type ViewWarmupPayload struct {
	WindowDays []int `json:"window_days,omitempty"`
}

// IdempotencyCleanupPayload carries the retention horizon.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewReorderRefreshTask constructs an Asynq task for the reorder refresh.
func NewReorderRefreshTask(asOf time.Time) (*asynq.Task, error) {
	return newTask(TaskReorderRefresh, ReorderRefreshPayload{AsOf: asOf})
}

// NewViewWarmupTask constructs an Asynq task warming the given windows.
func NewViewWarmupTask(windows ...int) (*asynq.Task, error) {
	return newTask(TaskViewWarmup, ViewWarmupPayload{WindowDays: windows})
}

// NewIdempotencyCleanupTask constructs an Asynq task pruning keys older than the horizon.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	return newTask(TaskIdempotencyCleanup, IdempotencyCleanupPayload{OlderThan: olderThan})
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, body, asynq.Queue(QueueDefault)), nil
}
