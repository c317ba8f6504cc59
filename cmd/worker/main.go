package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/storeops/internal/app"
	"github.com/odyssey-erp/storeops/internal/catalog"
	jobmetrics "github.com/odyssey-erp/storeops/internal/jobs"
	"github.com/odyssey-erp/storeops/internal/observability"
	"github.com/odyssey-erp/storeops/internal/platform/cache"
	"github.com/odyssey-erp/storeops/internal/platform/db"
	"github.com/odyssey-erp/storeops/internal/report"
	"github.com/odyssey-erp/storeops/internal/reportfilter"
	"github.com/odyssey-erp/storeops/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, TimeZone: cfg.ReportTimezone})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	loc := cfg.Location()
	reportCache := report.NewCache(redisClient, cfg.ReportCacheTTL).WithLogger(logger)
	catalogService := catalog.NewService(catalog.NewRepository(pool))
	validator := reportfilter.NewValidator(catalogService, reportfilter.Defaults{
		Window:           cfg.SalesDefaultWindow,
		SlowMovingDays:   cfg.SlowMovingDays,
		SlowMovingMaxQty: &cfg.SlowMovingMaxQty,
		Location:         loc,
	})
	reportService := report.NewService(report.NewRepository(pool), catalogService, reportCache, observability.NewMetrics(), logger)

	metrics := jobmetrics.NewMetrics(nil)
	warmupJob := jobs.NewReportsWarmupJob(reportService, catalogService, validator, logger, metrics)
	bumpJob := jobs.NewCacheBumpJob(reportCache, logger, metrics)

	warmupTask, err := jobs.NewWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    loc,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportsWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskReportsCacheBump, Handler: bumpJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
