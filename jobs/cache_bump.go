package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/storeops/internal/jobs"
)

// VersionBumper invalidates cached reports.
type VersionBumper interface {
	Bump(ctx context.Context) error
}

// CacheBumpJob raises the report cache version.
type CacheBumpJob struct {
	Cache   VersionBumper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCacheBumpJob wires dependencies for the cache bump handler.
func NewCacheBumpJob(cache VersionBumper, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheBumpJob {
	return &CacheBumpJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes cache bump tasks.
func (j *CacheBumpJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("cache bump: handler not configured")
	}
	var payload CacheBumpPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskReportsCacheBump)
	if err := j.Cache.Bump(ctx); err != nil {
		j.logger().Error("bump report cache", slog.String("reason", payload.Reason), slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("report cache bumped", slog.String("reason", payload.Reason))
	return tracker.End(nil)
}

func (j *CacheBumpJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsCacheBump))
	}
	return slog.Default().With(slog.String("job", TaskReportsCacheBump))
}
