// Package jobs runs billdesk background work on asynq.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMasterDataWarmup reloads the cached master-data lists.
	TaskMasterDataWarmup = "masterdata:warmup"

	// WarmupCron schedules TaskMasterDataWarmup in the worker.
	WarmupCron = "*/15 * * * *"
)

// MasterDataWarmupPayload describes a warmup request.
type MasterDataWarmupPayload struct {
	Trigger string `json:"trigger"`
}

// NewMasterDataWarmupTask constructs a warmup task. trigger names who asked
// for it and ends up in the job log.
func NewMasterDataWarmupTask(trigger string) (*asynq.Task, error) {
	if trigger == "" {
		trigger = "cron"
	}
	data, err := json.Marshal(MasterDataWarmupPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMasterDataWarmup, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
