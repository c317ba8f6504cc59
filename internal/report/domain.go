// Package report builds the back-office reports: it runs the statements
// assembled by reportquery, post-processes rows into labelled, totalled
// payloads and caches the results.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeops/internal/catalog"
	"github.com/odyssey-erp/storeops/internal/shared"
)

// Reorder statuses.
const (
	StatusReorder = "REORDER"
	StatusOK      = "OK"
)

// SalesRow is one group of the sales summary.
type SalesRow struct {
	Key          string          `json:"key"`
	Label        string          `json:"label"`
	Quantity     decimal.Decimal `json:"quantity"`
	SalesAmount  decimal.Decimal `json:"sales_amount"`
	Transactions int64           `json:"transactions"`
	Percentage   decimal.Decimal `json:"percentage"`
}

// SalesTotals sums the listed rows. Overall is the percentage denominator:
// all sales in the range and store, ignoring product and category filters.
type SalesTotals struct {
	Quantity     decimal.Decimal `json:"quantity"`
	SalesAmount  decimal.Decimal `json:"sales_amount"`
	Transactions int64           `json:"transactions"`
	Overall      decimal.Decimal `json:"overall_sales_amount"`
}

// SalesReport is the grouped sales summary.
type SalesReport struct {
	Rows        []SalesRow  `json:"rows"`
	Totals      SalesTotals `json:"totals"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// SlowMovingRow is a product that sold little or nothing in the window.
type SlowMovingRow struct {
	ProductID    int64           `json:"product_id"`
	SKU          string          `json:"sku"`
	ProductName  string          `json:"product_name"`
	CategoryName string          `json:"category_name"`
	OnHand       decimal.Decimal `json:"on_hand"`
	SoldQty      decimal.Decimal `json:"sold_qty"`
	LastSoldAt   *time.Time      `json:"last_sold_at"`
}

// SlowMovingTotals summarises the slow-moving list.
type SlowMovingTotals struct {
	Products int             `json:"products"`
	OnHand   decimal.Decimal `json:"on_hand"`
}

// SlowMovingReport lists slow-moving products.
type SlowMovingReport struct {
	Rows        []SlowMovingRow  `json:"rows"`
	Totals      SlowMovingTotals `json:"totals"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// ReorderRow is a store/product balance measured against its reorder level.
type ReorderRow struct {
	StoreID      int64           `json:"store_id"`
	StoreName    string          `json:"store_name"`
	ProductID    int64           `json:"product_id"`
	SKU          string          `json:"sku"`
	ProductName  string          `json:"product_name"`
	CategoryName string          `json:"category_name"`
	OnHand       decimal.Decimal `json:"on_hand"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	Shortfall    decimal.Decimal `json:"shortfall"`
	Status       string          `json:"status"`
}

// Evaluate sets Shortfall and Status from OnHand and ReorderLevel. A
// balance at or below the level needs reordering; above it the row is OK
// with zero shortfall.
func (r *ReorderRow) Evaluate() {
	if r.OnHand.LessThanOrEqual(r.ReorderLevel) {
		r.Shortfall = r.ReorderLevel.Sub(r.OnHand)
		r.Status = StatusReorder
		return
	}
	r.Shortfall = decimal.Zero
	r.Status = StatusOK
}

// ReorderTotals counts rows needing reorder and their summed shortfall.
type ReorderTotals struct {
	Reorder   int             `json:"reorder"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

// ReorderReport lists reorder candidates.
type ReorderReport struct {
	Rows        []ReorderRow  `json:"rows"`
	Totals      ReorderTotals `json:"totals"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// ValuationRow is one group of stock valued at unit cost.
type ValuationRow struct {
	Key        string          `json:"key"`
	Label      string          `json:"label"`
	Quantity   decimal.Decimal `json:"quantity"`
	Value      decimal.Decimal `json:"value"`
	Percentage decimal.Decimal `json:"percentage"`
}

// ValuationTotals sums the valuation.
type ValuationTotals struct {
	Quantity decimal.Decimal `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
}

// ValuationReport is the grouped stock valuation.
type ValuationReport struct {
	Rows        []ValuationRow  `json:"rows"`
	Totals      ValuationTotals `json:"totals"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// MovementRow is one product transaction.
type MovementRow struct {
	catalog.ProductTransaction
	StoreName   string `json:"store_name"`
	SKU         string `json:"sku"`
	ProductName string `json:"product_name"`
}

// MovementTotals sums the current page.
type MovementTotals struct {
	QtyIn  decimal.Decimal `json:"qty_in"`
	QtyOut decimal.Decimal `json:"qty_out"`
}

// MovementReport is one page of movement history.
type MovementReport struct {
	Rows        []MovementRow     `json:"rows"`
	Totals      MovementTotals    `json:"totals"`
	Pagination  shared.Pagination `json:"pagination"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// PurchaseRow is one purchase order.
type PurchaseRow struct {
	ID           int64           `json:"id"`
	Code         string          `json:"code"`
	OrderedAt    time.Time       `json:"ordered_at"`
	SupplierID   int64           `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	StoreID      int64           `json:"store_id"`
	StoreName    string          `json:"store_name"`
	Stage        shared.Stage    `json:"stage"`
	Total        decimal.Decimal `json:"total"`
	ItemCount    int64           `json:"item_count"`
}

// PurchaseTotals sums the current page.
type PurchaseTotals struct {
	Total decimal.Decimal `json:"total"`
}

// PurchaseReport is one page of purchase history.
type PurchaseReport struct {
	Rows        []PurchaseRow     `json:"rows"`
	Totals      PurchaseTotals    `json:"totals"`
	Pagination  shared.Pagination `json:"pagination"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// CollectionRow totals one payment type.
type CollectionRow struct {
	PaymentTypeID   int64           `json:"payment_type_id"`
	PaymentTypeName string          `json:"payment_type_name"`
	Amount          decimal.Decimal `json:"amount"`
	Receipts        int64           `json:"receipts"`
	Percentage      decimal.Decimal `json:"percentage"`
}

// CollectionTotals sums the collections. Receipts counts distinct receipts,
// so it can be lower than the sum of per-type receipt counts.
type CollectionTotals struct {
	Amount   decimal.Decimal `json:"amount"`
	Receipts int64           `json:"receipts"`
}

// CollectionReport is the per payment type collection summary.
type CollectionReport struct {
	Rows        []CollectionRow  `json:"rows"`
	Totals      CollectionTotals `json:"totals"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// CustomReport is the result of a custom report spec. Every cell is text.
type CustomReport struct {
	Columns     []string   `json:"columns"`
	Rows        [][]string `json:"rows"`
	Limit       int        `json:"limit"`
	Truncated   bool       `json:"truncated"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// Page is the payload returned for every report request.
type Page struct {
	Report       string             `json:"report"`
	Filters      any                `json:"filters"`
	Columns      []string           `json:"columns,omitempty"`
	Rows         any                `json:"rows"`
	Totals       any                `json:"totals,omitempty"`
	Pagination   *shared.Pagination `json:"pagination,omitempty"`
	Lookups      *catalog.Lookups   `json:"lookups,omitempty"`
	EmptyMessage string             `json:"empty_message,omitempty"`
	GeneratedAt  time.Time          `json:"generated_at"`
}
