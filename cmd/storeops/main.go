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

	"github.com/odyssey-erp/storeops/internal/app"
	"github.com/odyssey-erp/storeops/internal/catalog"
	"github.com/odyssey-erp/storeops/internal/inventory"
	"github.com/odyssey-erp/storeops/internal/observability"
	"github.com/odyssey-erp/storeops/internal/platform/cache"
	"github.com/odyssey-erp/storeops/internal/platform/db"
	"github.com/odyssey-erp/storeops/internal/report"
	reporthttp "github.com/odyssey-erp/storeops/internal/report/http"
	"github.com/odyssey-erp/storeops/internal/reportfilter"
	"github.com/odyssey-erp/storeops/jobs"
	"github.com/odyssey-erp/storeops/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MaxConnIdleTime: 5 * time.Minute, TimeZone: cfg.ReportTimezone})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := migrations.Apply(ctx, pool, logger); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, reports served uncached", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	reportCache := report.NewCache(redisClient, cfg.ReportCacheTTL).WithLogger(logger)
	if err := reportCache.ListenForInvalidation(ctx, report.BumpChannel); err != nil {
		logger.Warn("report cache invalidation listener", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	validator := reportfilter.NewValidator(catalogService, reportfilter.Defaults{
		Window:           cfg.SalesDefaultWindow,
		SlowMovingDays:   cfg.SlowMovingDays,
		SlowMovingMaxQty: &cfg.SlowMovingMaxQty,
		Location:         cfg.Location(),
	})
	reportService := report.NewService(report.NewRepository(pool), catalogService, reportCache, metrics, logger)
	reportHandler := reporthttp.NewHandler(logger, reportService, validator)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	invalidator := inventory.ReportInvalidator{Bump: reportCache.Bump}
	if cfg.CacheBumpViaQueue {
		invalidator.Bump = jobClient.EnqueueCacheBump
	}
	inventoryService := inventory.NewService(
		inventory.NewRepository(pool),
		catalogService,
		invalidator,
		inventory.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock},
		logger,
	)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("job inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		ReportHandler:    reportHandler,
		InventoryHandler: inventoryHandler,
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
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	logger.Info("http server stopped")
}
