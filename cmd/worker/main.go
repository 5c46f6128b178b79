package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/app"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/catalog"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/forecast"
	jobmetrics "github.com/warehouse-wrangler/warehouse-wrangler/internal/jobs"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/platform/cache"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/platform/db"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
	"github.com/warehouse-wrangler/warehouse-wrangler/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)

	forecastCache := forecast.NewCache(redisClient, cfg.ForecastCacheTTL)
	auditLogger := shared.NewAuditLogger(pool)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, auditLogger, forecastCache)

	forecastRepo := forecast.NewRepository(pool)
	forecastService := forecast.NewService(forecastRepo, catalogService, forecastCache, forecast.Unit(cfg.StockUnit))

	idempotencyStore := shared.NewIdempotencyStore(pool)

	warmupJob := jobs.NewForecastWarmupJob(forecastService, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, logger, metrics)

	warmupTask, err := jobs.NewForecastWarmupTask(jobs.ForecastWarmupPayload{IncludeAmazon: true, IncludeAdditional: true})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{OlderThanHours: 72})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskForecastWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 5 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
