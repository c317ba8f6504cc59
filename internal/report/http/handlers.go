package reporthttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/storeops/internal/catalog"
	"github.com/odyssey-erp/storeops/internal/platform/httpx"
	"github.com/odyssey-erp/storeops/internal/report"
	"github.com/odyssey-erp/storeops/internal/report/export"
	"github.com/odyssey-erp/storeops/internal/reportfilter"
	"github.com/odyssey-erp/storeops/internal/shared"
)

// ReportService is the report contract used by the handler.
type ReportService interface {
	SalesSummary(ctx context.Context, f reportfilter.Filter) (report.SalesReport, error)
	SlowMoving(ctx context.Context, f reportfilter.Filter) (report.SlowMovingReport, error)
	Reorder(ctx context.Context, f reportfilter.Filter) (report.ReorderReport, error)
	StockValuation(ctx context.Context, f reportfilter.Filter) (report.ValuationReport, error)
	MovementHistory(ctx context.Context, f reportfilter.Filter) (report.MovementReport, error)
	PurchaseHistory(ctx context.Context, f reportfilter.Filter) (report.PurchaseReport, error)
	CollectionSummary(ctx context.Context, f reportfilter.Filter) (report.CollectionReport, error)
	Custom(ctx context.Context, f reportfilter.CustomFilter) (report.CustomReport, error)
	Lookups(ctx context.Context, categoryID *int64) (catalog.Lookups, error)
}

// FilterValidator turns raw parameters into validated filters.
type FilterValidator interface {
	Validate(ctx context.Context, r reportfilter.Report, in reportfilter.Input) (reportfilter.Filter, error)
	ValidateCustom(ctx context.Context, in reportfilter.CustomInput) (reportfilter.CustomFilter, error)
}

// rendered is implemented by every filterable report.
type rendered interface {
	Page(filters any, lookups *catalog.Lookups) report.Page
	Table() report.Table
}

var supportedLanguages = language.NewMatcher([]language.Tag{
	language.English,
	language.German,
	language.French,
	language.Indonesian,
})

// Handler serves report pages and CSV exports.
type Handler struct {
	logger    *slog.Logger
	service   ReportService
	validator FilterValidator
	csvPool   sync.Pool
	now       func() time.Time
}

// NewHandler constructs the report HTTP handler.
func NewHandler(logger *slog.Logger, service ReportService, validator FilterValidator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:    logger,
		service:   service,
		validator: validator,
		now:       time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	name, ok := reportfilter.ParseReport(chi.URLParam(r, "report"))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown report")
		return
	}
	filter, rep, err := h.load(r, name)
	if err != nil {
		h.respondError(w, string(name), err)
		return
	}
	lookups, err := h.service.Lookups(r.Context(), filter.CategoryID)
	if err != nil {
		h.respondError(w, "lookups", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep.Page(filter, &lookups))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	name, ok := reportfilter.ParseReport(chi.URLParam(r, "report"))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown report")
		return
	}
	_, rep, err := h.load(r, name)
	if err != nil {
		h.respondError(w, string(name), err)
		return
	}
	h.writeCSV(w, r, rep.Table())
}

func (h *Handler) handleCustom(w http.ResponseWriter, r *http.Request) {
	filter, rep, err := h.loadCustom(r)
	if err != nil {
		h.respondError(w, "custom", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep.Page(filter))
}

func (h *Handler) handleCustomExport(w http.ResponseWriter, r *http.Request) {
	_, rep, err := h.loadCustom(r)
	if err != nil {
		h.respondError(w, "custom", err)
		return
	}
	h.writeCSV(w, r, rep.Table())
}

func (h *Handler) handleLookups(w http.ResponseWriter, r *http.Request) {
	in := reportfilter.FromQuery(r.URL.Query())
	if in.CategoryID != nil && *in.CategoryID < 1 {
		httpx.RespondError(w, shared.FieldError("category_id", "must be 1 or greater"))
		return
	}
	lookups, err := h.service.Lookups(r.Context(), in.CategoryID)
	if err != nil {
		h.respondError(w, "lookups", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lookups)
}

func (h *Handler) load(r *http.Request, name reportfilter.Report) (reportfilter.Filter, rendered, error) {
	ctx := r.Context()
	filter, err := h.validator.Validate(ctx, name, reportfilter.FromQuery(r.URL.Query()))
	if err != nil {
		return filter, nil, err
	}
	var rep rendered
	switch name {
	case reportfilter.ReportSales:
		rep, err = wrap[report.SalesReport](h.service.SalesSummary(ctx, filter))
	case reportfilter.ReportSlowMoving:
		rep, err = wrap[report.SlowMovingReport](h.service.SlowMoving(ctx, filter))
	case reportfilter.ReportReorder:
		rep, err = wrap[report.ReorderReport](h.service.Reorder(ctx, filter))
	case reportfilter.ReportValuation:
		rep, err = wrap[report.ValuationReport](h.service.StockValuation(ctx, filter))
	case reportfilter.ReportMovements:
		rep, err = wrap[report.MovementReport](h.service.MovementHistory(ctx, filter))
	case reportfilter.ReportPurchases:
		rep, err = wrap[report.PurchaseReport](h.service.PurchaseHistory(ctx, filter))
	case reportfilter.ReportCollections:
		rep, err = wrap[report.CollectionReport](h.service.CollectionSummary(ctx, filter))
	default:
		err = fmt.Errorf("%w: %q", reportfilter.ErrUnknownReport, name)
	}
	return filter, rep, err
}

func wrap[T rendered](rep T, err error) (rendered, error) {
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (h *Handler) loadCustom(r *http.Request) (reportfilter.CustomFilter, report.CustomReport, error) {
	var in reportfilter.CustomInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		return reportfilter.CustomFilter{}, report.CustomReport{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	filter, err := h.validator.ValidateCustom(r.Context(), in)
	if err != nil {
		return filter, report.CustomReport{}, err
	}
	rep, err := h.service.Custom(r.Context(), filter)
	return filter, rep, err
}

// writeCSV buffers the whole file so a formatting failure can still be
// reported as a 500.
func (h *Handler) writeCSV(w http.ResponseWriter, r *http.Request, table report.Table) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer h.csvPool.Put(buf)

	if err := export.WriteCSV(buf, table, requestLanguage(r)); err != nil {
		h.respondError(w, "write "+table.Name+" csv", err)
		return
	}
	filename := export.Filename(table.Name, h.now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("stream csv", slog.String("report", table.Name), slog.Any("error", err))
	}
}

func requestLanguage(r *http.Request) language.Tag {
	tag, _ := language.MatchStrings(supportedLanguages, r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
	return tag
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, reportfilter.ErrUnknownReport) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown report")
		return
	}
	if !shared.IsClientError(err) {
		h.logger.Error("report request failed", slog.String("op", op), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
