package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/forecast"
	jobmetrics "github.com/warehouse-wrangler/warehouse-wrangler/internal/jobs"
)

// ForecastWarmupJob pre-populates the coverage dashboard cache so the
// first morning request does not pay for the full computation.
type ForecastWarmupJob struct {
	Forecast *forecast.Service
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewForecastWarmupJob wires dependencies for the warmup handler.
func NewForecastWarmupJob(forecastSvc *forecast.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ForecastWarmupJob {
	return &ForecastWarmupJob{Forecast: forecastSvc, Logger: logger, Metrics: metrics}
}

// Handle processes forecast warmup tasks. It computes the default
// dashboard variant plus the toggles named in the payload.
func (j *ForecastWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Forecast == nil {
		return errors.New("forecast warmup: handler not configured")
	}
	var payload ForecastWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskForecastWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	variants := []forecast.Options{
		{IncludeAmazon: payload.IncludeAmazon, IncludeAdditional: payload.IncludeAdditional, IncludeFuture: true},
		{IncludeAmazon: true, IncludeAdditional: true, IncludeFuture: true},
	}
	warmed := 0
	for _, opts := range variants {
		if _, err := j.Forecast.Dashboard(ctx, opts); err != nil {
			resultErr = err
			return err
		}
		warmed++
	}
	if j.Logger != nil {
		j.Logger.Info("forecast warmup complete",
			slog.Int("variants", warmed),
			slog.Duration("took", time.Since(start)),
		)
	}
	return nil
}
