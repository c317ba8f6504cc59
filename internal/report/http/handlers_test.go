package reporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/storeops/internal/catalog"
	"github.com/odyssey-erp/storeops/internal/report"
	"github.com/odyssey-erp/storeops/internal/reportfilter"
	"github.com/odyssey-erp/storeops/internal/reportquery"
)

type stubService struct {
	sales     report.SalesReport
	reorder   report.ReorderReport
	custom    report.CustomReport
	err       error
	calls     int
	lastSales reportfilter.Filter
	lastSpec  reportquery.CustomSpec
}

func (s *stubService) SalesSummary(ctx context.Context, f reportfilter.Filter) (report.SalesReport, error) {
	s.calls++
	s.lastSales = f
	return s.sales, s.err
}

func (s *stubService) SlowMoving(ctx context.Context, f reportfilter.Filter) (report.SlowMovingReport, error) {
	s.calls++
	return report.SlowMovingReport{Rows: []report.SlowMovingRow{}}, s.err
}

func (s *stubService) Reorder(ctx context.Context, f reportfilter.Filter) (report.ReorderReport, error) {
	s.calls++
	return s.reorder, s.err
}

func (s *stubService) StockValuation(ctx context.Context, f reportfilter.Filter) (report.ValuationReport, error) {
	s.calls++
	return report.ValuationReport{Rows: []report.ValuationRow{}}, s.err
}

func (s *stubService) MovementHistory(ctx context.Context, f reportfilter.Filter) (report.MovementReport, error) {
	s.calls++
	return report.MovementReport{Rows: []report.MovementRow{}}, s.err
}

func (s *stubService) PurchaseHistory(ctx context.Context, f reportfilter.Filter) (report.PurchaseReport, error) {
	s.calls++
	return report.PurchaseReport{Rows: []report.PurchaseRow{}}, s.err
}

func (s *stubService) CollectionSummary(ctx context.Context, f reportfilter.Filter) (report.CollectionReport, error) {
	s.calls++
	return report.CollectionReport{Rows: []report.CollectionRow{}}, s.err
}

func (s *stubService) Custom(ctx context.Context, f reportfilter.CustomFilter) (report.CustomReport, error) {
	s.calls++
	s.lastSpec = f.Spec
	return s.custom, s.err
}

func (s *stubService) Lookups(ctx context.Context, categoryID *int64) (catalog.Lookups, error) {
	return catalog.Lookups{Stores: []catalog.Store{{ID: 1, Name: "Main"}}}, nil
}

type stubLookup struct{}

func (stubLookup) Exists(_ context.Context, kind catalog.Kind, id int64) (bool, error) {
	return id == 1, nil
}

func intPtr(v int) *int { return &v }

func newTestRouter(svc *stubService) http.Handler {
	v := reportfilter.NewValidator(stubLookup{}, reportfilter.Defaults{
		Window:           "month",
		SlowMovingDays:   90,
		SlowMovingMaxQty: intPtr(5),
		Now:              func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) },
		Location:         time.UTC,
	})
	h := NewHandler(nil, svc, v)
	h.WithNow(func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) })
	r := chi.NewRouter()
	h.MountRoutes(r, 2)
	return r
}

func salesFixture() report.SalesReport {
	return report.SalesReport{
		Rows: []report.SalesRow{
			{Key: "2024-03-01", Label: "01 Mar 2024", Quantity: decimal.NewFromInt(1200), SalesAmount: decimal.RequireFromString("1234567.5"), Transactions: 3, Percentage: decimal.NewFromInt(100)},
		},
		Totals: report.SalesTotals{Quantity: decimal.NewFromInt(1200), SalesAmount: decimal.RequireFromString("1234567.5"), Transactions: 3},
	}
}

func TestSalesReportReturnsPage(t *testing.T) {
	svc := &stubService{sales: salesFixture()}
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/sales?store_id=1&group_by=day", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Report  string           `json:"report"`
		Rows    []map[string]any `json:"rows"`
		Lookups catalog.Lookups  `json:"lookups"`
		Filters map[string]any   `json:"filters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "sales", body.Report)
	assert.Len(t, body.Rows, 1)
	assert.Len(t, body.Lookups.Stores, 1)
	assert.Equal(t, "2024-03-01", body.Filters["start_date"])
	require.NotNil(t, svc.lastSales.StoreID)
	assert.Equal(t, int64(1), *svc.lastSales.StoreID)
}

func TestEmptyReportCarriesMessage(t *testing.T) {
	svc := &stubService{reorder: report.ReorderReport{Rows: []report.ReorderRow{}}}
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/reorder", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []any{}, body["rows"])
	assert.NotEmpty(t, body["empty_message"])
}

func TestValidationFailureSkipsService(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/reports/sales?start_date=2024-03-10&end_date=2024-03-01&store_id=9", nil))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Errors, "end_date")
	assert.Contains(t, body.Errors, "store_id")
	assert.Zero(t, svc.calls)
}

func TestUnknownReportIsNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&stubService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/ageing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServiceFailureIsGeneric(t *testing.T) {
	svc := &stubService{err: errors.New("connection refused")}
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/sales", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestExportWritesCSV(t *testing.T) {
	svc := &stubService{sales: salesFixture()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports/sales/export.csv", nil)
	req.Header.Set("Accept-Language", "en-US")
	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sales-20240315-")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "\"1,234,567.50\"")
}

func TestExportIsRateLimited(t *testing.T) {
	router := newTestRouter(&stubService{sales: salesFixture()})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/reports/sales/export.csv", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCustomReport(t *testing.T) {
	svc := &stubService{custom: report.CustomReport{
		Columns: []string{"store", "sales_amount"},
		Rows:    [][]string{{"Main", "10.00"}},
		Limit:   100,
	}}
	body := `{"group_by":["store"],"aggregates":["sales_amount"],"start_date":"2024-03-01","end_date":"2024-03-31"}`
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reports/custom", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page struct {
		Report  string     `json:"report"`
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, "custom", page.Report)
	assert.Equal(t, []string{"store", "sales_amount"}, page.Columns)
	assert.True(t, svc.lastSpec.Summary())
}

func TestCustomReportRejectsUnknownFields(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reports/custom",
		strings.NewReader(`{"columns":["sku"],"sql":"drop table sales"}`)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, svc.calls)
}

func TestCustomReportRejectsUnknownColumn(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reports/custom",
		strings.NewReader(`{"columns":["password"]}`)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "columns")
	assert.Zero(t, svc.calls)
}

func TestLookups(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&stubService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/lookups", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var lookups catalog.Lookups
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lookups))
	assert.Equal(t, "Main", lookups.Stores[0].Name)
}
