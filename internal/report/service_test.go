package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/storeops/internal/catalog"
	"github.com/odyssey-erp/storeops/internal/reportfilter"
	"github.com/odyssey-erp/storeops/internal/reportquery"
	"github.com/odyssey-erp/storeops/internal/shared"
)

type stubStore struct {
	salesRows    []SalesRow
	salesTotal   decimal.Decimal
	salesCalls   int
	salesFilter  reportquery.SalesFilter
	slowRows     []SlowMovingRow
	lastSales    map[int64]time.Time
	lastSalesIDs []int64
	reorderRows  []ReorderRow
	valRows      []ValuationRow
	movements    []MovementRow
	movementCnt  int
	limit        int
	offset       int
	purchases    []PurchaseRow
	purchaseCnt  int
	collections  []CollectionRow
	receipts     int64
	customCols   []string
	customRows   [][]string
	err          error
}

func (s *stubStore) SalesRows(_ context.Context, _ reportquery.GroupBy, f reportquery.SalesFilter) ([]SalesRow, error) {
	s.salesCalls++
	s.salesFilter = f
	return s.salesRows, s.err
}

func (s *stubStore) SalesTotal(context.Context, reportquery.SalesFilter) (decimal.Decimal, error) {
	return s.salesTotal, nil
}

func (s *stubStore) SlowMoving(context.Context, reportquery.SlowMovingFilter) ([]SlowMovingRow, error) {
	return s.slowRows, s.err
}

func (s *stubStore) LastSales(_ context.Context, ids []int64, _ *int64) (map[int64]time.Time, error) {
	s.lastSalesIDs = ids
	return s.lastSales, nil
}

func (s *stubStore) Reorder(context.Context, reportquery.ReorderFilter) ([]ReorderRow, error) {
	return s.reorderRows, s.err
}

func (s *stubStore) Valuation(context.Context, reportquery.GroupBy, reportquery.StockFilter) ([]ValuationRow, error) {
	return s.valRows, s.err
}

func (s *stubStore) Movements(_ context.Context, _ reportquery.MovementFilter, limit, offset int) ([]MovementRow, error) {
	s.limit, s.offset = limit, offset
	return s.movements, s.err
}

func (s *stubStore) CountMovements(context.Context, reportquery.MovementFilter) (int, error) {
	return s.movementCnt, nil
}

func (s *stubStore) Purchases(_ context.Context, _ reportquery.PurchaseFilter, limit, offset int) ([]PurchaseRow, error) {
	s.limit, s.offset = limit, offset
	return s.purchases, s.err
}

func (s *stubStore) CountPurchases(context.Context, reportquery.PurchaseFilter) (int, error) {
	return s.purchaseCnt, nil
}

func (s *stubStore) Collections(context.Context, reportquery.CollectionFilter) ([]CollectionRow, error) {
	return s.collections, s.err
}

func (s *stubStore) CountReceipts(context.Context, reportquery.CollectionFilter) (int64, error) {
	return s.receipts, nil
}

func (s *stubStore) Custom(context.Context, reportquery.CustomSpec) ([]string, [][]string, error) {
	return s.customCols, s.customRows, s.err
}

type stubLookups struct{ calls int }

func (s *stubLookups) Lookups(context.Context, *int64) (catalog.Lookups, error) {
	s.calls++
	return catalog.Lookups{Stores: []catalog.Store{{ID: 1, Name: "Main"}}}, nil
}

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(store, &stubLookups{}, NewCache(client, time.Minute), nil, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func salesFilter(g reportquery.GroupBy) reportfilter.Filter {
	return reportfilter.Filter{
		Report:    reportfilter.ReportSales,
		GroupBy:   g,
		StartDate: "2024-03-01",
		EndDate:   "2024-03-31",
		Window: reportquery.Range{
			From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestSalesSummaryPercentagesSumToHundred(t *testing.T) {
	store := &stubStore{
		salesRows: []SalesRow{
			{Key: "2024-03-04", SalesAmount: d("100"), Quantity: d("4"), Transactions: 2},
			{Key: "2024-03-11", SalesAmount: d("100"), Quantity: d("1"), Transactions: 1},
			{Key: "2024-03-18", SalesAmount: d("100"), Quantity: d("3"), Transactions: 1},
		},
		salesTotal: d("300"),
	}
	svc := newTestService(t, store)

	rep, err := svc.SalesSummary(context.Background(), salesFilter(reportquery.GroupWeek))
	require.NoError(t, err)
	require.Len(t, rep.Rows, 3)

	sum := decimal.Zero
	for _, row := range rep.Rows {
		assert.True(t, row.Percentage.Equal(d("33.33")), "got %s", row.Percentage)
		sum = sum.Add(row.Percentage)
	}
	assert.True(t, sum.Sub(d("100")).Abs().LessThanOrEqual(d("0.01")), "sum %s", sum)
	assert.Equal(t, "Week of 2024-03-04", rep.Rows[0].Label)
	assert.True(t, rep.Totals.SalesAmount.Equal(d("300")))
	assert.True(t, rep.Totals.Quantity.Equal(d("8")))
	assert.Equal(t, int64(4), rep.Totals.Transactions)
	assert.Equal(t, fixedNow, rep.GeneratedAt.UTC())
}

func TestSalesSummaryZeroTotalYieldsZeroPercent(t *testing.T) {
	store := &stubStore{
		salesRows:  []SalesRow{{Key: "4", Label: "Coffee", SalesAmount: decimal.Zero}},
		salesTotal: decimal.Zero,
	}
	svc := newTestService(t, store)

	rep, err := svc.SalesSummary(context.Background(), salesFilter(reportquery.GroupProduct))
	require.NoError(t, err)
	assert.True(t, rep.Rows[0].Percentage.IsZero())
	assert.Equal(t, "Coffee", rep.Rows[0].Label)
}

type blockingSalesStore struct {
	*stubStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSalesStore) SalesRows(ctx context.Context, g reportquery.GroupBy, f reportquery.SalesFilter) ([]SalesRow, error) {
	s.once.Do(func() { close(s.started) })
	<-s.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.stubStore.SalesRows(ctx, g, f)
}

func TestSharedBuildOutlivesCancelledCaller(t *testing.T) {
	store := &blockingSalesStore{
		stubStore: &stubStore{salesRows: []SalesRow{{Key: "2024-03-01", SalesAmount: d("5")}}, salesTotal: d("5")},
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	svc := newTestService(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		rep SalesReport
		err error
	}
	done := make(chan result, 1)
	go func() {
		rep, err := svc.SalesSummary(ctx, salesFilter(reportquery.GroupDay))
		done <- result{rep, err}
	}()

	<-store.started
	cancel()
	close(store.release)

	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.rep.Rows, 1)

	// The finished build was cached, so a later caller does not rebuild.
	_, err := svc.SalesSummary(context.Background(), salesFilter(reportquery.GroupDay))
	require.NoError(t, err)
	assert.Equal(t, 1, store.salesCalls)
}

func TestSalesSummaryIsCachedUntilBump(t *testing.T) {
	store := &stubStore{salesRows: []SalesRow{{Key: "2024-03-01", SalesAmount: d("5")}}, salesTotal: d("5")}
	svc := newTestService(t, store)
	ctx := context.Background()
	f := salesFilter(reportquery.GroupDay)

	first, err := svc.SalesSummary(ctx, f)
	require.NoError(t, err)
	second, err := svc.SalesSummary(ctx, f)
	require.NoError(t, err)

	assert.Equal(t, 1, store.salesCalls)
	assert.Equal(t, first, second)

	require.NoError(t, svc.Cache().Bump(ctx))
	_, err = svc.SalesSummary(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 2, store.salesCalls)
}

func TestSalesSummaryPassesWindow(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(t, store)
	f := salesFilter(reportquery.GroupDay)

	rep, err := svc.SalesSummary(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, f.Window, store.salesFilter.Range)
	assert.NotNil(t, rep.Rows)
	assert.Equal(t, emptySales, rep.Page(f, nil).EmptyMessage)
}

func TestSalesSummaryErrorIsNotCached(t *testing.T) {
	store := &stubStore{err: errors.New("db down")}
	svc := newTestService(t, store)
	f := salesFilter(reportquery.GroupDay)

	_, err := svc.SalesSummary(context.Background(), f)
	require.Error(t, err)

	store.err = nil
	_, err = svc.SalesSummary(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 2, store.salesCalls)
}

func TestReorderShortfall(t *testing.T) {
	store := &stubStore{reorderRows: []ReorderRow{
		{StoreID: 1, ProductID: 1, OnHand: d("8"), ReorderLevel: d("10")},
	}}
	svc := newTestService(t, store)

	rep, err := svc.Reorder(context.Background(), reportfilter.Filter{Report: reportfilter.ReportReorder})
	require.NoError(t, err)

	require.Len(t, rep.Rows, 1)
	assert.True(t, rep.Rows[0].Shortfall.Equal(d("2")))
	assert.Equal(t, StatusReorder, rep.Rows[0].Status)
	assert.Equal(t, 1, rep.Totals.Reorder)
}

func TestReorderIncludeOKClampsShortfall(t *testing.T) {
	store := &stubStore{reorderRows: []ReorderRow{
		{ProductID: 1, OnHand: d("10"), ReorderLevel: d("10")},
		{ProductID: 2, OnHand: d("15"), ReorderLevel: d("10")},
	}}
	svc := newTestService(t, store)

	rep, err := svc.Reorder(context.Background(), reportfilter.Filter{Report: reportfilter.ReportReorder, IncludeOK: true})
	require.NoError(t, err)

	require.Len(t, rep.Rows, 2)
	assert.Equal(t, StatusReorder, rep.Rows[0].Status, "on hand equal to level is included")
	assert.True(t, rep.Rows[0].Shortfall.IsZero())
	assert.Equal(t, StatusOK, rep.Rows[1].Status)
	assert.True(t, rep.Rows[1].Shortfall.IsZero())
	assert.Equal(t, 1, rep.Totals.Reorder)
}

func TestSlowMovingFetchesLastSaleForListedProducts(t *testing.T) {
	sold := time.Date(2023, 11, 2, 10, 0, 0, 0, time.UTC)
	store := &stubStore{
		slowRows: []SlowMovingRow{
			{ProductID: 7, OnHand: d("12"), SoldQty: decimal.Zero},
			{ProductID: 9, OnHand: d("3"), SoldQty: d("2")},
		},
		lastSales: map[int64]time.Time{9: sold},
	}
	svc := newTestService(t, store)

	rep, err := svc.SlowMoving(context.Background(), reportfilter.Filter{Report: reportfilter.ReportSlowMoving, Days: 90})
	require.NoError(t, err)

	assert.Equal(t, []int64{7, 9}, store.lastSalesIDs)
	require.Len(t, rep.Rows, 2)
	assert.Nil(t, rep.Rows[0].LastSoldAt, "never-sold product has no last sale")
	require.NotNil(t, rep.Rows[1].LastSoldAt)
	assert.True(t, sold.Equal(*rep.Rows[1].LastSoldAt))
	assert.Equal(t, 2, rep.Totals.Products)
	assert.True(t, rep.Totals.OnHand.Equal(d("15")))
}

func TestStockValuationPercentages(t *testing.T) {
	store := &stubStore{valRows: []ValuationRow{
		{Key: "1", Label: "Drinks", Quantity: d("10"), Value: d("75")},
		{Key: "0", Label: "Uncategorized", Quantity: d("5"), Value: d("25")},
	}}
	svc := newTestService(t, store)

	rep, err := svc.StockValuation(context.Background(), reportfilter.Filter{Report: reportfilter.ReportValuation, GroupBy: reportquery.GroupCategory})
	require.NoError(t, err)
	assert.True(t, rep.Rows[0].Percentage.Equal(d("75")))
	assert.True(t, rep.Rows[1].Percentage.Equal(d("25")))
	assert.True(t, rep.Totals.Value.Equal(d("100")))
}

func TestMovementHistoryPaging(t *testing.T) {
	store := &stubStore{
		movementCnt: 60,
		movements: []MovementRow{
			{ProductTransaction: catalog.ProductTransaction{ID: 1, QtyIn: d("5"), QtyOut: decimal.Zero}},
			{ProductTransaction: catalog.ProductTransaction{ID: 2, QtyIn: decimal.Zero, QtyOut: d("2")}},
		},
	}
	svc := newTestService(t, store)

	rep, err := svc.MovementHistory(context.Background(), reportfilter.Filter{Report: reportfilter.ReportMovements, Page: 3})
	require.NoError(t, err)

	assert.Equal(t, MovementsPerPage, store.limit)
	assert.Equal(t, 50, store.offset)
	assert.Equal(t, shared.Pagination{Page: 3, PerPage: 25, Total: 60, TotalPages: 3}, rep.Pagination)
	assert.True(t, rep.Totals.QtyIn.Equal(d("5")))
	assert.True(t, rep.Totals.QtyOut.Equal(d("2")))
}

func TestPurchaseHistoryPaging(t *testing.T) {
	store := &stubStore{
		purchaseCnt: 21,
		purchases:   []PurchaseRow{{ID: 3, Stage: shared.StageApproved, Total: d("40.50")}},
	}
	svc := newTestService(t, store)

	rep, err := svc.PurchaseHistory(context.Background(), reportfilter.Filter{Report: reportfilter.ReportPurchases, Page: 2})
	require.NoError(t, err)

	assert.Equal(t, PurchasesPerPage, store.limit)
	assert.Equal(t, 20, store.offset)
	assert.Equal(t, 2, rep.Pagination.TotalPages)
	assert.Equal(t, shared.StageApproved, rep.Rows[0].Stage)
	assert.True(t, rep.Totals.Total.Equal(d("40.5")))
}

func TestCollectionSummary(t *testing.T) {
	store := &stubStore{
		collections: []CollectionRow{
			{PaymentTypeID: 1, PaymentTypeName: "Cash", Amount: d("30"), Receipts: 3},
			{PaymentTypeID: 2, PaymentTypeName: "Card", Amount: d("70"), Receipts: 2},
			{PaymentTypeID: 3, PaymentTypeName: "Voucher", Amount: decimal.Zero},
		},
		receipts: 4,
	}
	svc := newTestService(t, store)

	rep, err := svc.CollectionSummary(context.Background(), reportfilter.Filter{Report: reportfilter.ReportCollections})
	require.NoError(t, err)

	require.Len(t, rep.Rows, 3)
	assert.True(t, rep.Rows[0].Percentage.Equal(d("30")))
	assert.True(t, rep.Rows[1].Percentage.Equal(d("70")))
	assert.True(t, rep.Rows[2].Percentage.IsZero())
	assert.Equal(t, int64(4), rep.Totals.Receipts)
	assert.True(t, rep.Totals.Amount.Equal(d("100")))
}

func TestCustomFoldsGroupColumns(t *testing.T) {
	store := &stubStore{
		customCols: []string{"month_key", "month", "store_key", "store", "sales_amount"},
		customRows: [][]string{
			{"2024-03-01", "", "1", "Main", "120.00"},
			{"2024-03-01", "", "2", "Annex", "80.00"},
		},
	}
	svc := newTestService(t, store)
	f := reportfilter.CustomFilter{Spec: reportquery.CustomSpec{
		GroupBy:    []reportquery.GroupBy{reportquery.GroupMonth, reportquery.GroupStore},
		Aggregates: []reportquery.Aggregate{reportquery.AggSalesAmount},
		Limit:      2,
	}}

	rep, err := svc.Custom(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, []string{"month", "store", "sales_amount"}, rep.Columns)
	assert.Equal(t, [][]string{{"Mar 2024", "Main", "120.00"}, {"Mar 2024", "Annex", "80.00"}}, rep.Rows)
	assert.False(t, rep.Truncated)
}

func TestCustomTruncatesOnlyPastLimit(t *testing.T) {
	spec := reportquery.CustomSpec{Columns: []reportquery.Column{reportquery.ColSKU}, Limit: 2}
	cols := []string{"sku"}

	exact := buildCustom(spec, cols, [][]string{{"A"}, {"B"}})
	assert.False(t, exact.Truncated)
	assert.Len(t, exact.Rows, 2)

	over := buildCustom(spec, cols, [][]string{{"A"}, {"B"}, {"C"}})
	assert.True(t, over.Truncated)
	assert.Equal(t, [][]string{{"A"}, {"B"}}, over.Rows)
	assert.Equal(t, 2, over.Limit)
}

func TestCustomDetailPassesColumnsThrough(t *testing.T) {
	store := &stubStore{customCols: []string{"sku", "quantity"}, customRows: [][]string{{"A-1", "2.000"}}}
	svc := newTestService(t, store)

	rep, err := svc.Custom(context.Background(), reportfilter.CustomFilter{Spec: reportquery.CustomSpec{
		Columns: []reportquery.Column{reportquery.ColSKU, reportquery.ColQuantity},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"sku", "quantity"}, rep.Columns)
	assert.False(t, rep.Truncated)
}

func TestLookupsAreCached(t *testing.T) {
	lookups := &stubLookups{}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(&stubStore{}, lookups, NewCache(client, time.Minute), nil, nil)

	for i := 0; i < 2; i++ {
		out, err := svc.Lookups(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "Main", out.Stores[0].Name)
	}
	assert.Equal(t, 1, lookups.calls)
}

func TestServiceWithoutCache(t *testing.T) {
	store := &stubStore{salesRows: []SalesRow{{Key: "2024-03-01", SalesAmount: d("5")}}, salesTotal: d("5")}
	svc := NewService(store, &stubLookups{}, nil, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := svc.SalesSummary(context.Background(), salesFilter(reportquery.GroupDay))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.salesCalls)
}

func TestPercentage(t *testing.T) {
	assert.True(t, Percentage(d("1"), d("3")).Equal(d("33.33")))
	assert.True(t, Percentage(d("2"), d("3")).Equal(d("66.67")))
	assert.True(t, Percentage(d("5"), decimal.Zero).IsZero())
}
