package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/commerceops/opsdash/jobs"
)

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func run(c *JobsCLI, args ...string) (int, string, string) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := c.JobsCommand(context.Background(), JobsOptions{Args: args, Stdout: stdout, Stderr: stderr})
	return code, stdout.String(), stderr.String()
}

func TestJobsTrigger(t *testing.T) {
	enq := &stubEnqueuer{}
	c := &JobsCLI{client: enq}

	code, out, _ := run(c, "trigger", jobs.TaskReorderRefresh)
	require.Equal(t, 0, code)
	require.Contains(t, out, "enqueued inventory:reorder_refresh id=t-1")
	require.Len(t, enq.tasks, 1)

	code, _, errOut := run(c, "trigger", "finance:close")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "unsupported job")

	code, _, _ = run(c, "trigger")
	require.Equal(t, 2, code)
}

func TestJobsStats(t *testing.T) {
	c := &JobsCLI{inspector: stubInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 3, Retry: 1}}}

	code, out, _ := run(c, "stats", "-json")
	require.Equal(t, 0, code)
	var stats QueueStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 3, Retry: 1}, stats)

	code, out, _ = run(c, "stats")
	require.Equal(t, 0, code)
	require.Contains(t, out, "pending=3")

	code, _, errOut := run(&JobsCLI{inspector: stubInspector{err: errors.New("redis down")}}, "stats")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "redis down")
}

func TestJobsUsage(t *testing.T) {
	code, _, _ := run(&JobsCLI{})
	require.Equal(t, 2, code)
	code, _, _ = run(&JobsCLI{}, "purge")
	require.Equal(t, 2, code)
}
