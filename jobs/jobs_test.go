package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/storeops/internal/catalog"
	jobmetrics "github.com/odyssey-erp/storeops/internal/jobs"
	"github.com/odyssey-erp/storeops/internal/report"
	"github.com/odyssey-erp/storeops/internal/reportfilter"
)

type stubWarmer struct {
	reorder    []*int64
	slowMoving []reportfilter.Filter
	lookups    int
	err        error
}

func (s *stubWarmer) Reorder(ctx context.Context, f reportfilter.Filter) (report.ReorderReport, error) {
	s.reorder = append(s.reorder, f.StoreID)
	return report.ReorderReport{}, s.err
}

func (s *stubWarmer) SlowMoving(ctx context.Context, f reportfilter.Filter) (report.SlowMovingReport, error) {
	s.slowMoving = append(s.slowMoving, f)
	return report.SlowMovingReport{}, nil
}

func (s *stubWarmer) Lookups(ctx context.Context, categoryID *int64) (catalog.Lookups, error) {
	s.lookups++
	return catalog.Lookups{}, nil
}

type stubStores []catalog.Store

func (s stubStores) Stores(ctx context.Context) ([]catalog.Store, error) {
	return s, nil
}

type passValidator struct{}

func (passValidator) Validate(_ context.Context, r reportfilter.Report, in reportfilter.Input) (reportfilter.Filter, error) {
	f := reportfilter.Filter{Report: r, StoreID: in.StoreID}
	if r == reportfilter.ReportSlowMoving {
		f.Days = 90
	}
	return f, nil
}

func TestWarmupCoversEveryStore(t *testing.T) {
	warmer := &stubWarmer{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewReportsWarmupJob(warmer, stubStores{{ID: 1}, {ID: 2}}, passValidator{}, nil, metrics)

	task, err := NewWarmupTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, warmer.reorder, 3)
	assert.Nil(t, warmer.reorder[0], "first scope covers all stores")
	assert.Equal(t, int64(1), *warmer.reorder[1])
	assert.Equal(t, int64(2), *warmer.reorder[2])
	assert.Len(t, warmer.slowMoving, 3)
	assert.Equal(t, 90, warmer.slowMoving[0].Days)
	assert.Equal(t, 1, warmer.lookups)
}

func TestWarmupHonoursPayloadStores(t *testing.T) {
	warmer := &stubWarmer{}
	job := NewReportsWarmupJob(warmer, stubStores{{ID: 1}, {ID: 2}}, passValidator{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewWarmupTask(2)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, warmer.reorder, 2)
	assert.Equal(t, int64(2), *warmer.reorder[1])
}

func TestWarmupFailureIsReturned(t *testing.T) {
	boom := errors.New("db down")
	job := NewReportsWarmupJob(&stubWarmer{err: boom}, nil, passValidator{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewWarmupTask()
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

func TestWarmupRejectsBadPayload(t *testing.T) {
	job := NewReportsWarmupJob(&stubWarmer{}, nil, passValidator{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskReportsWarmup, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type stubBumper struct {
	calls int
	err   error
}

func (s *stubBumper) Bump(ctx context.Context) error {
	s.calls++
	return s.err
}

func TestCacheBumpJob(t *testing.T) {
	bumper := &stubBumper{}
	job := NewCacheBumpJob(bumper, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewCacheBumpTask("test")
	require.NoError(t, err)
	assert.Equal(t, TaskReportsCacheBump, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, bumper.calls)

	bumper.err = errors.New("redis down")
	assert.Error(t, job.Handle(context.Background(), task))
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthHandler(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}}, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body QueueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Pending)
	assert.Equal(t, 1, body.Retry)
}

func TestHealthHandlerUnavailable(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{err: errors.New("dial tcp")}, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
