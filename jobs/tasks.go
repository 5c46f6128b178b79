package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskForecastWarmup pre-computes the coverage dashboard cache.
	TaskForecastWarmup = "forecast:warmup"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ForecastWarmupPayload selects which dashboard variants to warm.
type ForecastWarmupPayload struct {
	IncludeAmazon     bool `json:"include_amazon"`
	IncludeAdditional bool `json:"include_additional"`
}

// NewForecastWarmupTask constructs an Asynq task.
func NewForecastWarmupTask(payload ForecastWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskForecastWarmup, data), nil
}

// IdempotencyCleanupPayload bounds the retention window in hours.
type IdempotencyCleanupPayload struct {
	OlderThanHours int `json:"older_than_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
