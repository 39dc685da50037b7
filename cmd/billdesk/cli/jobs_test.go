package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/billdesk/jobs"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f *fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func (f *fakeInspector) ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return nil, f.err
}

func (f *fakeInspector) Close() error { return nil }

func TestTriggerWarmup(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := &JobsCLI{client: enq, inspector: &fakeInspector{}}

	var out bytes.Buffer
	require.NoError(t, c.Run(context.Background(), &out, []string{"trigger", jobs.TaskMasterDataWarmup}))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, jobs.TaskMasterDataWarmup, enq.tasks[0].Type())
	require.Contains(t, out.String(), "enqueued masterdata:warmup id=t-1")
}

func TestTriggerUnknownJob(t *testing.T) {
	c := &JobsCLI{client: &fakeEnqueuer{}}
	_, err := c.Trigger(context.Background(), "mail:send")
	require.ErrorContains(t, err, "unsupported job")
}

func TestStats(t *testing.T) {
	c := &JobsCLI{inspector: &fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 2, Retry: 1}}}

	var out bytes.Buffer
	require.NoError(t, c.Run(context.Background(), &out, []string{"stats"}))
	require.Contains(t, out.String(), "PENDING")
	require.Regexp(t, `default\s+2\s+0\s+0\s+1`, out.String())
}

func TestStatsInspectorFailure(t *testing.T) {
	boom := errors.New("redis down")
	c := &JobsCLI{inspector: &fakeInspector{err: boom}}
	require.ErrorIs(t, c.Run(context.Background(), &bytes.Buffer{}, []string{"stats"}), boom)
}

func TestRunUsage(t *testing.T) {
	c := &JobsCLI{}
	require.Error(t, c.Run(context.Background(), &bytes.Buffer{}, nil))
	require.Error(t, c.Run(context.Background(), &bytes.Buffer{}, []string{"trigger"}))
	require.Error(t, c.Run(context.Background(), &bytes.Buffer{}, []string{"purge"}))
}
