package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/warehouse-wrangler/warehouse-wrangler/internal/jobs"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// IdempotencyCleanupJob prunes idempotency keys past their retention
// window.
type IdempotencyCleanupJob struct {
	Store   *shared.IdempotencyStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob wires dependencies for the cleanup handler.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes cleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OlderThanHours <= 0 {
		payload.OlderThanHours = 72
	}

	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	window := time.Duration(payload.OlderThanHours) * time.Hour
	if err := j.Store.Cleanup(ctx, window); err != nil {
		resultErr = err
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("idempotency cleanup complete", slog.Duration("older_than", window))
	}
	return nil
}
