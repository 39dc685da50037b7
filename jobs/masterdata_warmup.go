package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/billdesk/internal/jobs"
	"github.com/odyssey-erp/billdesk/internal/masterdata"
)

// Warmer reloads master-data lists into the cache.
type Warmer interface {
	Warmup(ctx context.Context) (masterdata.WarmupResult, error)
}

// MasterDataWarmupJob refreshes the master-data cache so draft editing rarely
// waits on the remote API.
type MasterDataWarmupJob struct {
	Directory Warmer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Timeout   time.Duration
}

// NewMasterDataWarmupJob wires dependencies for the warmup handler.
func NewMasterDataWarmupJob(directory Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *MasterDataWarmupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MasterDataWarmupJob{
		Directory: directory,
		Logger:    logger.With(slog.String("job", TaskMasterDataWarmup)),
		Metrics:   metrics,
		Timeout:   2 * time.Minute,
	}
}

// Handle processes warmup tasks.
func (j *MasterDataWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Directory == nil {
		return errors.New("masterdata warmup: handler not configured")
	}
	var payload MasterDataWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskMasterDataWarmup)
	defer func() {
		err = tracker.End(err)
	}()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	logger := j.Logger.With(slog.String("trigger", payload.Trigger))
	logger.Info("starting masterdata warmup")

	counts, err := j.Directory.Warmup(ctx)
	if err != nil {
		logger.Error("masterdata warmup", slog.Any("error", err))
		return err
	}
	for resource, n := range counts {
		j.Metrics.SetRecords(TaskMasterDataWarmup, resource, n)
	}
	logger.Info("completed masterdata warmup", slog.Int("resources", len(counts)), slog.Duration("duration", time.Since(start)))
	return nil
}
