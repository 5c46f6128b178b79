package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/app"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/auth"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/catalog"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/forecast"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/ledger"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/observability"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/platform/cache"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/platform/db"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shipments"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/users"
	"github.com/warehouse-wrangler/warehouse-wrangler/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	tokenStore := auth.NewTokenStore(redisClient, "wrangler_token", cfg.SessionTTL)
	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, tokenStore)
	authHandler := auth.NewHandler(logger, authService)
	authMiddleware := auth.Middleware{Resolver: authService, Logger: logger}

	metrics := observability.NewMetrics()
	forecastCache := forecast.NewCache(redisClient, cfg.ForecastCacheTTL)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, auditLogger, forecastCache)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger, forecastCache, idempotencyStore)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	shipmentsRepo := shipments.NewRepository(dbpool)
	shipmentsService := shipments.NewService(shipmentsRepo, auditLogger, forecastCache, metrics)
	shipmentsHandler := shipments.NewHandler(logger, shipmentsService)

	forecastRepo := forecast.NewRepository(dbpool)
	forecastService := forecast.NewService(forecastRepo, catalogService, forecastCache, forecast.Unit(cfg.StockUnit))
	forecastHandler := forecast.NewHandler(logger, forecastService)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger)
	usersHandler := users.NewHandler(logger, usersService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		AuthMiddleware:   authMiddleware,
		CatalogHandler:   catalogHandler,
		LedgerHandler:    ledgerHandler,
		ShipmentsHandler: shipmentsHandler,
		ForecastHandler:  forecastHandler,
		UsersHandler:     usersHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
