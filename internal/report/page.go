package report

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeops/internal/catalog"
	"github.com/odyssey-erp/storeops/internal/reportquery"
)

// Empty-state messages shown when a report has no rows.
const (
	emptySales       = "No sales found for the selected filters."
	emptySlowMoving  = "No slow-moving products for the selected filters."
	emptyReorder     = "No products need reordering."
	emptyValuation   = "No stock on hand for the selected filters."
	emptyMovements   = "No stock movements found for the selected filters."
	emptyPurchases   = "No purchases found for the selected filters."
	emptyCollections = "No payment types are configured."
	emptyCustom      = "The custom report returned no rows."
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func emptyMessage(rows int, msg string) string {
	if rows > 0 {
		return ""
	}
	return msg
}

// Page wraps the report for the response payload.
func (r SalesReport) Page(filters any, lookups *catalog.Lookups) Page {
	return Page{Report: "sales", Filters: filters, Rows: r.Rows, Totals: r.Totals, Lookups: lookups,
		EmptyMessage: emptyMessage(len(r.Rows), emptySales), GeneratedAt: r.GeneratedAt}
}

// Page wraps the report for the response payload.
func (r SlowMovingReport) Page(filters any, lookups *catalog.Lookups) Page {
	return Page{Report: "slow-moving", Filters: filters, Rows: r.Rows, Totals: r.Totals, Lookups: lookups,
		EmptyMessage: emptyMessage(len(r.Rows), emptySlowMoving), GeneratedAt: r.GeneratedAt}
}

// Page wraps the report for the response payload.
func (r ReorderReport) Page(filters any, lookups *catalog.Lookups) Page {
	return Page{Report: "reorder", Filters: filters, Rows: r.Rows, Totals: r.Totals, Lookups: lookups,
		EmptyMessage: emptyMessage(len(r.Rows), emptyReorder), GeneratedAt: r.GeneratedAt}
}

// Page wraps the report for the response payload.
func (r ValuationReport) Page(filters any, lookups *catalog.Lookups) Page {
	return Page{Report: "stock-valuation", Filters: filters, Rows: r.Rows, Totals: r.Totals, Lookups: lookups,
		EmptyMessage: emptyMessage(len(r.Rows), emptyValuation), GeneratedAt: r.GeneratedAt}
}

// Page wraps the report for the response payload.
func (r MovementReport) Page(filters any, lookups *catalog.Lookups) Page {
	p := r.Pagination
	return Page{Report: "stock-movements", Filters: filters, Rows: r.Rows, Totals: r.Totals, Pagination: &p, Lookups: lookups,
		EmptyMessage: emptyMessage(len(r.Rows), emptyMovements), GeneratedAt: r.GeneratedAt}
}

// Page wraps the report for the response payload.
func (r PurchaseReport) Page(filters any, lookups *catalog.Lookups) Page {
	p := r.Pagination
	return Page{Report: "purchases", Filters: filters, Rows: r.Rows, Totals: r.Totals, Pagination: &p, Lookups: lookups,
		EmptyMessage: emptyMessage(len(r.Rows), emptyPurchases), GeneratedAt: r.GeneratedAt}
}

// Page wraps the report for the response payload.
func (r CollectionReport) Page(filters any, lookups *catalog.Lookups) Page {
	return Page{Report: "collections", Filters: filters, Rows: r.Rows, Totals: r.Totals, Lookups: lookups,
		EmptyMessage: emptyMessage(len(r.Rows), emptyCollections), GeneratedAt: r.GeneratedAt}
}

// Page wraps the report for the response payload.
func (r CustomReport) Page(filters any) Page {
	return Page{Report: "custom", Filters: filters, Columns: r.Columns, Rows: r.Rows,
		EmptyMessage: emptyMessage(len(r.Rows), emptyCustom), GeneratedAt: r.GeneratedAt}
}

// Table is a report flattened for export. Numeric marks columns holding
// decimal numbers.
type Table struct {
	Name    string
	Header  []string
	Numeric []bool
	Rows    [][]string
}

func dec(d decimal.Decimal) string { return d.String() }

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// Table flattens the report for export.
func (r SalesReport) Table() Table {
	t := Table{
		Name:    "sales",
		Header:  []string{"Group", "Quantity", "Sales Amount", "Transactions", "Percentage"},
		Numeric: []bool{false, true, true, true, true},
	}
	for _, row := range r.Rows {
		t.Rows = append(t.Rows, []string{row.Label, dec(row.Quantity), money(row.SalesAmount),
			strconv.FormatInt(row.Transactions, 10), money(row.Percentage)})
	}
	return t
}

// Table flattens the report for export.
func (r SlowMovingReport) Table() Table {
	t := Table{
		Name:    "slow-moving",
		Header:  []string{"SKU", "Product", "Category", "On Hand", "Sold", "Last Sold"},
		Numeric: []bool{false, false, false, true, true, false},
	}
	for _, row := range r.Rows {
		t.Rows = append(t.Rows, []string{row.SKU, row.ProductName, row.CategoryName, dec(row.OnHand),
			dec(row.SoldQty), date(row.LastSoldAt)})
	}
	return t
}

// Table flattens the report for export.
func (r ReorderReport) Table() Table {
	t := Table{
		Name:    "reorder",
		Header:  []string{"Store", "SKU", "Product", "Category", "On Hand", "Reorder Level", "Shortfall", "Status"},
		Numeric: []bool{false, false, false, false, true, true, true, false},
	}
	for _, row := range r.Rows {
		t.Rows = append(t.Rows, []string{row.StoreName, row.SKU, row.ProductName, row.CategoryName,
			dec(row.OnHand), dec(row.ReorderLevel), dec(row.Shortfall), row.Status})
	}
	return t
}

// Table flattens the report for export.
func (r ValuationReport) Table() Table {
	t := Table{
		Name:    "stock-valuation",
		Header:  []string{"Group", "Quantity", "Value", "Percentage"},
		Numeric: []bool{false, true, true, true},
	}
	for _, row := range r.Rows {
		t.Rows = append(t.Rows, []string{row.Label, dec(row.Quantity), money(row.Value), money(row.Percentage)})
	}
	return t
}

// Table flattens the report for export.
func (r MovementReport) Table() Table {
	t := Table{
		Name:    "stock-movements",
		Header:  []string{"Date", "Store", "SKU", "Product", "Type", "In", "Out", "Unit", "Reference"},
		Numeric: []bool{false, false, false, false, false, true, true, false, false},
	}
	for _, row := range r.Rows {
		at := row.OccurredAt
		t.Rows = append(t.Rows, []string{date(&at), row.StoreName, row.SKU, row.ProductName, row.Type,
			dec(row.QtyIn), dec(row.QtyOut), row.Unit, row.RefCode})
	}
	return t
}

// Table flattens the report for export.
func (r PurchaseReport) Table() Table {
	t := Table{
		Name:    "purchases",
		Header:  []string{"Code", "Date", "Supplier", "Store", "Stage", "Items", "Total"},
		Numeric: []bool{false, false, false, false, false, true, true},
	}
	for _, row := range r.Rows {
		at := row.OrderedAt
		t.Rows = append(t.Rows, []string{row.Code, date(&at), row.SupplierName, row.StoreName, row.Stage.String(),
			strconv.FormatInt(row.ItemCount, 10), money(row.Total)})
	}
	return t
}

// Table flattens the report for export.
func (r CollectionReport) Table() Table {
	t := Table{
		Name:    "collections",
		Header:  []string{"Payment Type", "Amount", "Receipts", "Percentage"},
		Numeric: []bool{false, true, true, true},
	}
	for _, row := range r.Rows {
		t.Rows = append(t.Rows, []string{row.PaymentTypeName, money(row.Amount),
			strconv.FormatInt(row.Receipts, 10), money(row.Percentage)})
	}
	return t
}

// Table flattens the report for export. Aggregates and item amounts are
// numeric.
func (r CustomReport) Table() Table {
	t := Table{Name: "custom", Header: r.Columns, Rows: r.Rows, Numeric: make([]bool, len(r.Columns))}
	for i, c := range r.Columns {
		if _, err := reportquery.ParseAggregate(c); err == nil {
			t.Numeric[i] = true
			continue
		}
		switch reportquery.Column(c) {
		case reportquery.ColQuantity, reportquery.ColPrice, reportquery.ColSubtotal:
			t.Numeric[i] = true
		}
	}
	return t
}
