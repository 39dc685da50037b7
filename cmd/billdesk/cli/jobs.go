// Package cli holds operator subcommands of the billdesk binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/billdesk/jobs"
)

// Enqueuer is the subset of asynq.Client the CLI uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// QueueInspector is the subset of asynq.Inspector the CLI uses.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for asynq jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector QueueInspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskMasterDataWarmup:
		task, err = jobs.NewMasterDataWarmupTask("cli")
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos.
func (c *JobsCLI) ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// Run executes `jobs trigger <task>` or `jobs stats`.
func (c *JobsCLI) Run(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: billdesk jobs trigger <task> | stats")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("usage: billdesk jobs trigger <task>")
		}
		info, err := c.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return err
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY")
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return tw.Flush()
	default:
		return fmt.Errorf("jobs cli: unknown command %q", args[0])
	}
}
