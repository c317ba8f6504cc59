package report

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/storeops/internal/catalog"
	"github.com/odyssey-erp/storeops/internal/observability"
	"github.com/odyssey-erp/storeops/internal/reportfilter"
	"github.com/odyssey-erp/storeops/internal/reportquery"
	"github.com/odyssey-erp/storeops/internal/shared"
)

// Page sizes of the list-style reports.
const (
	MovementsPerPage = 25
	PurchasesPerPage = 20
)

// Store is the persistence surface the service needs. *Repository
// satisfies it.
type Store interface {
	SalesRows(ctx context.Context, g reportquery.GroupBy, f reportquery.SalesFilter) ([]SalesRow, error)
	SalesTotal(ctx context.Context, f reportquery.SalesFilter) (decimal.Decimal, error)
	SlowMoving(ctx context.Context, f reportquery.SlowMovingFilter) ([]SlowMovingRow, error)
	LastSales(ctx context.Context, productIDs []int64, storeID *int64) (map[int64]time.Time, error)
	Reorder(ctx context.Context, f reportquery.ReorderFilter) ([]ReorderRow, error)
	Valuation(ctx context.Context, g reportquery.GroupBy, f reportquery.StockFilter) ([]ValuationRow, error)
	Movements(ctx context.Context, f reportquery.MovementFilter, limit, offset int) ([]MovementRow, error)
	CountMovements(ctx context.Context, f reportquery.MovementFilter) (int, error)
	Purchases(ctx context.Context, f reportquery.PurchaseFilter, limit, offset int) ([]PurchaseRow, error)
	CountPurchases(ctx context.Context, f reportquery.PurchaseFilter) (int, error)
	Collections(ctx context.Context, f reportquery.CollectionFilter) ([]CollectionRow, error)
	CountReceipts(ctx context.Context, f reportquery.CollectionFilter) (int64, error)
	Custom(ctx context.Context, spec reportquery.CustomSpec) ([]string, [][]string, error)
}

// LookupLoader loads the filter dropdown lists.
type LookupLoader interface {
	Lookups(ctx context.Context, categoryID *int64) (catalog.Lookups, error)
}

// Service builds reports. Identical concurrent requests share one build,
// and results are cached under the normalized filter.
type Service struct {
	store   Store
	lookups LookupLoader
	cache   *Cache
	metrics *observability.Metrics
	logger  *slog.Logger
	group   singleflight.Group
	now     func() time.Time
}

// NewService wires a Store with its cache. cache, metrics and logger may
// be nil.
func NewService(store Store, lookups LookupLoader, cache *Cache, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, lookups: lookups, cache: cache, metrics: metrics, logger: logger, now: time.Now}
}

// Cache exposes the report cache so writers can invalidate it.
func (s *Service) Cache() *Cache {
	return s.cache
}

// fetch returns the cached result for (name, key) or builds it with
// loader. Concurrent callers with the same key share one build.
func (s *Service) fetch(ctx context.Context, name, key string, dest any, loader func(context.Context) (any, error)) error {
	cacheKey, err := s.cache.BuildKey(ctx, name, key)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.String("report", name), slog.Any("error", err))
		return NewCache(nil, 0).FetchJSON(ctx, "", dest, loader)
	}
	// The build is shared by every caller waiting on cacheKey, so it must
	// not stop when the first of them goes away.
	buildCtx := context.WithoutCancel(ctx)
	raw, err, _ := s.group.Do(cacheKey, func() (any, error) {
		var payload json.RawMessage
		if err := s.cache.FetchJSON(buildCtx, cacheKey, &payload, loader); err != nil {
			return nil, err
		}
		return payload, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.(json.RawMessage), dest)
}

func (s *Service) observe(name string, rows int, err error) {
	s.metrics.ObserveReport(name, rows, err)
	if err != nil {
		s.logger.Error("report build failed", slog.String("report", name), slog.Any("error", err))
	}
}

// SalesSummary groups sales by f.GroupBy with percentage of the overall
// total. Group labels are formatted for display.
func (s *Service) SalesSummary(ctx context.Context, f reportfilter.Filter) (SalesReport, error) {
	var out SalesReport
	err := s.fetch(ctx, string(reportfilter.ReportSales), f.Key(), &out, func(ctx context.Context) (any, error) {
		sf := f.SalesFilter()
		rows, err := s.store.SalesRows(ctx, f.GroupBy, sf)
		if err != nil {
			return nil, err
		}
		overall, err := s.store.SalesTotal(ctx, sf)
		if err != nil {
			return nil, err
		}
		return buildSales(f.GroupBy, rows, overall, s.now()), nil
	})
	s.observe(string(reportfilter.ReportSales), len(out.Rows), err)
	return out, err
}

func buildSales(g reportquery.GroupBy, rows []SalesRow, overall decimal.Decimal, now time.Time) SalesReport {
	out := SalesReport{Rows: make([]SalesRow, 0, len(rows)), GeneratedAt: now}
	out.Totals.Overall = overall
	for _, row := range rows {
		row.Label = reportquery.FormatLabel(g, row.Key, row.Label)
		row.Percentage = Percentage(row.SalesAmount, overall)
		out.Totals.Quantity = out.Totals.Quantity.Add(row.Quantity)
		out.Totals.SalesAmount = out.Totals.SalesAmount.Add(row.SalesAmount)
		out.Totals.Transactions += row.Transactions
		out.Rows = append(out.Rows, row)
	}
	return out
}

// SlowMoving lists products with stock whose sales in the trailing window
// are at most the threshold, with their last sale date.
func (s *Service) SlowMoving(ctx context.Context, f reportfilter.Filter) (SlowMovingReport, error) {
	var out SlowMovingReport
	err := s.fetch(ctx, string(reportfilter.ReportSlowMoving), f.Key(), &out, func(ctx context.Context) (any, error) {
		rows, err := s.store.SlowMoving(ctx, f.SlowMovingFilter())
		if err != nil {
			return nil, err
		}
		ids := make([]int64, len(rows))
		for i, row := range rows {
			ids[i] = row.ProductID
		}
		last, err := s.store.LastSales(ctx, ids, f.StoreID)
		if err != nil {
			return nil, err
		}
		rep := SlowMovingReport{Rows: make([]SlowMovingRow, 0, len(rows)), GeneratedAt: s.now()}
		for _, row := range rows {
			if at, ok := last[row.ProductID]; ok {
				row.LastSoldAt = &at
			}
			rep.Totals.Products++
			rep.Totals.OnHand = rep.Totals.OnHand.Add(row.OnHand)
			rep.Rows = append(rep.Rows, row)
		}
		return rep, nil
	})
	s.observe(string(reportfilter.ReportSlowMoving), len(out.Rows), err)
	return out, err
}

// Reorder lists balances at or below their reorder level, or every
// balance with a level when f.IncludeOK is set.
func (s *Service) Reorder(ctx context.Context, f reportfilter.Filter) (ReorderReport, error) {
	var out ReorderReport
	err := s.fetch(ctx, string(reportfilter.ReportReorder), f.Key(), &out, func(ctx context.Context) (any, error) {
		rows, err := s.store.Reorder(ctx, f.ReorderFilter())
		if err != nil {
			return nil, err
		}
		rep := ReorderReport{Rows: make([]ReorderRow, 0, len(rows)), GeneratedAt: s.now()}
		for _, row := range rows {
			row.Evaluate()
			if row.Status == StatusReorder {
				rep.Totals.Reorder++
				rep.Totals.Shortfall = rep.Totals.Shortfall.Add(row.Shortfall)
			} else if !f.IncludeOK {
				continue
			}
			rep.Rows = append(rep.Rows, row)
		}
		return rep, nil
	})
	s.observe(string(reportfilter.ReportReorder), len(out.Rows), err)
	return out, err
}

// StockValuation values stock at unit cost grouped by f.GroupBy.
func (s *Service) StockValuation(ctx context.Context, f reportfilter.Filter) (ValuationReport, error) {
	var out ValuationReport
	err := s.fetch(ctx, string(reportfilter.ReportValuation), f.Key(), &out, func(ctx context.Context) (any, error) {
		rows, err := s.store.Valuation(ctx, f.GroupBy, f.StockFilter())
		if err != nil {
			return nil, err
		}
		rep := ValuationReport{Rows: make([]ValuationRow, 0, len(rows)), GeneratedAt: s.now()}
		for _, row := range rows {
			rep.Totals.Quantity = rep.Totals.Quantity.Add(row.Quantity)
			rep.Totals.Value = rep.Totals.Value.Add(row.Value)
		}
		for _, row := range rows {
			row.Label = reportquery.FormatLabel(f.GroupBy, row.Key, row.Label)
			row.Percentage = Percentage(row.Value, rep.Totals.Value)
			rep.Rows = append(rep.Rows, row)
		}
		return rep, nil
	})
	s.observe(string(reportfilter.ReportValuation), len(out.Rows), err)
	return out, err
}

// MovementHistory pages through stock movements, newest first.
func (s *Service) MovementHistory(ctx context.Context, f reportfilter.Filter) (MovementReport, error) {
	var out MovementReport
	err := s.fetch(ctx, string(reportfilter.ReportMovements), f.Key(), &out, func(ctx context.Context) (any, error) {
		mf := f.MovementFilter()
		total, err := s.store.CountMovements(ctx, mf)
		if err != nil {
			return nil, err
		}
		page := shared.NewPagination(f.Page, MovementsPerPage, total)
		rows, err := s.store.Movements(ctx, mf, page.PerPage, page.Offset())
		if err != nil {
			return nil, err
		}
		rep := MovementReport{Rows: rows, Pagination: page, GeneratedAt: s.now()}
		if rep.Rows == nil {
			rep.Rows = []MovementRow{}
		}
		for _, row := range rows {
			rep.Totals.QtyIn = rep.Totals.QtyIn.Add(row.QtyIn)
			rep.Totals.QtyOut = rep.Totals.QtyOut.Add(row.QtyOut)
		}
		return rep, nil
	})
	s.observe(string(reportfilter.ReportMovements), len(out.Rows), err)
	return out, err
}

// PurchaseHistory pages through purchases, newest first.
func (s *Service) PurchaseHistory(ctx context.Context, f reportfilter.Filter) (PurchaseReport, error) {
	var out PurchaseReport
	err := s.fetch(ctx, string(reportfilter.ReportPurchases), f.Key(), &out, func(ctx context.Context) (any, error) {
		pf := f.PurchaseFilter()
		total, err := s.store.CountPurchases(ctx, pf)
		if err != nil {
			return nil, err
		}
		page := shared.NewPagination(f.Page, PurchasesPerPage, total)
		rows, err := s.store.Purchases(ctx, pf, page.PerPage, page.Offset())
		if err != nil {
			return nil, err
		}
		rep := PurchaseReport{Rows: rows, Pagination: page, GeneratedAt: s.now()}
		if rep.Rows == nil {
			rep.Rows = []PurchaseRow{}
		}
		for _, row := range rows {
			rep.Totals.Total = rep.Totals.Total.Add(row.Total)
		}
		return rep, nil
	})
	s.observe(string(reportfilter.ReportPurchases), len(out.Rows), err)
	return out, err
}

// CollectionSummary totals collections per payment type.
func (s *Service) CollectionSummary(ctx context.Context, f reportfilter.Filter) (CollectionReport, error) {
	var out CollectionReport
	err := s.fetch(ctx, string(reportfilter.ReportCollections), f.Key(), &out, func(ctx context.Context) (any, error) {
		cf := f.CollectionFilter()
		rows, err := s.store.Collections(ctx, cf)
		if err != nil {
			return nil, err
		}
		receipts, err := s.store.CountReceipts(ctx, cf)
		if err != nil {
			return nil, err
		}
		rep := CollectionReport{Rows: make([]CollectionRow, 0, len(rows)), GeneratedAt: s.now()}
		rep.Totals.Receipts = receipts
		for _, row := range rows {
			rep.Totals.Amount = rep.Totals.Amount.Add(row.Amount)
		}
		for _, row := range rows {
			row.Percentage = Percentage(row.Amount, rep.Totals.Amount)
			rep.Rows = append(rep.Rows, row)
		}
		return rep, nil
	})
	s.observe(string(reportfilter.ReportCollections), len(out.Rows), err)
	return out, err
}

// Custom runs a validated custom spec. Summary groupings are collapsed to
// one display column each.
func (s *Service) Custom(ctx context.Context, f reportfilter.CustomFilter) (CustomReport, error) {
	var out CustomReport
	err := s.fetch(ctx, "custom", f.Key(), &out, func(ctx context.Context) (any, error) {
		columns, rows, err := s.store.Custom(ctx, f.Spec)
		if err != nil {
			return nil, err
		}
		rep := buildCustom(f.Spec, columns, rows)
		rep.GeneratedAt = s.now()
		return rep, nil
	})
	s.observe("custom", len(out.Rows), err)
	return out, err
}

// buildCustom folds each "<group>_key"/"<group>" column pair into a single
// formatted label column. rows carries at most one row past the limit, which
// only marks the report as truncated.
func buildCustom(spec reportquery.CustomSpec, columns []string, rows [][]string) CustomReport {
	rep := CustomReport{Limit: spec.EffectiveLimit()}
	if len(rows) > rep.Limit {
		rep.Truncated = true
		rows = rows[:rep.Limit]
	}
	rep.Rows = make([][]string, 0, len(rows))
	if !spec.Summary() {
		rep.Columns = columns
		rep.Rows = append(rep.Rows, rows...)
		return rep
	}
	groups := len(spec.GroupBy)
	for i := 0; i < groups; i++ {
		rep.Columns = append(rep.Columns, string(spec.GroupBy[i]))
	}
	rep.Columns = append(rep.Columns, columns[2*groups:]...)
	for _, row := range rows {
		out := make([]string, 0, len(rep.Columns))
		for i, g := range spec.GroupBy {
			out = append(out, reportquery.FormatLabel(g, row[2*i], row[2*i+1]))
		}
		out = append(out, row[2*groups:]...)
		rep.Rows = append(rep.Rows, out)
	}
	return rep
}

// Lookups loads the dropdown lists, narrowing products to categoryID.
func (s *Service) Lookups(ctx context.Context, categoryID *int64) (catalog.Lookups, error) {
	key := "all"
	if categoryID != nil {
		key = "category=" + formatID(*categoryID)
	}
	var out catalog.Lookups
	err := s.fetch(ctx, "lookups", key, &out, func(ctx context.Context) (any, error) {
		return s.lookups.Lookups(ctx, categoryID)
	})
	return out, err
}
