package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/storeops/internal/catalog"
	jobmetrics "github.com/odyssey-erp/storeops/internal/jobs"
	"github.com/odyssey-erp/storeops/internal/report"
	"github.com/odyssey-erp/storeops/internal/reportfilter"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReportWarmer builds the reports a warmup run pre-populates.
type ReportWarmer interface {
	Reorder(ctx context.Context, f reportfilter.Filter) (report.ReorderReport, error)
	SlowMoving(ctx context.Context, f reportfilter.Filter) (report.SlowMovingReport, error)
	Lookups(ctx context.Context, categoryID *int64) (catalog.Lookups, error)
}

// StoreLister lists the stores to warm.
type StoreLister interface {
	Stores(ctx context.Context) ([]catalog.Store, error)
}

// FilterValidator resolves default filters.
type FilterValidator interface {
	Validate(ctx context.Context, r reportfilter.Report, in reportfilter.Input) (reportfilter.Filter, error)
}

// ReportsWarmupJob pre-populates the report cache with the default reorder
// and slow-moving reports for every store and for all stores combined.
type ReportsWarmupJob struct {
	Reports   ReportWarmer
	Stores    StoreLister
	Validator FilterValidator
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(reports ReportWarmer, stores StoreLister, validator FilterValidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{
		Reports:   reports,
		Stores:    stores,
		Validator: validator,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil || j.Validator == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskReportsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := j.now()
	logger.Info("starting reports warmup")

	scopes, err := j.scopes(ctx, payload)
	if err != nil {
		resultErr = err
		logger.Error("load warmup stores", slog.Any("error", err))
		return resultErr
	}

	if _, err := j.Reports.Lookups(ctx, nil); err != nil {
		resultErr = err
		logger.Error("warm lookups", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddWarmed("lookups", 1)

	warmed := 0
	for _, storeID := range scopes {
		if err := j.warmStore(ctx, storeID); err != nil {
			resultErr = err
			logger.Error("warm store", slog.Int64("store_id", storeValue(storeID)), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed reports warmup", slog.Int("scopes", warmed), slog.Duration("duration", j.now().Sub(start)))
	return resultErr
}

// scopes returns nil (all stores) followed by each store to warm.
func (j *ReportsWarmupJob) scopes(ctx context.Context, payload WarmupPayload) ([]*int64, error) {
	ids := payload.StoreIDs
	if len(ids) == 0 && j.Stores != nil {
		stores, err := j.Stores.Stores(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range stores {
			ids = append(ids, s.ID)
		}
	}
	scopes := []*int64{nil}
	for i := range ids {
		scopes = append(scopes, &ids[i])
	}
	return scopes, nil
}

func (j *ReportsWarmupJob) warmStore(ctx context.Context, storeID *int64) error {
	scopeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	in := reportfilter.Input{StoreID: storeID}
	f, err := j.Validator.Validate(scopeCtx, reportfilter.ReportReorder, in)
	if err != nil {
		return err
	}
	if _, err := j.Reports.Reorder(scopeCtx, f); err != nil {
		return err
	}
	j.metrics().AddWarmed(string(reportfilter.ReportReorder), 1)

	f, err = j.Validator.Validate(scopeCtx, reportfilter.ReportSlowMoving, in)
	if err != nil {
		return err
	}
	if _, err := j.Reports.SlowMoving(scopeCtx, f); err != nil {
		return err
	}
	j.metrics().AddWarmed(string(reportfilter.ReportSlowMoving), 1)
	return nil
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}

func (j *ReportsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func storeValue(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
