package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeops/internal/shared"
)

// Sale is one receipt. Voided sales never count towards reports.
type Sale struct {
	ID      int64      `json:"id"`
	StoreID int64      `json:"store_id"`
	SoldAt  time.Time  `json:"sold_at"`
	Voided  bool       `json:"voided"`
	Items   []SaleItem `json:"items,omitempty"`
}

// SaleItem is one line of a sale.
type SaleItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal is quantity times price.
func (i SaleItem) Subtotal() decimal.Decimal {
	return i.Quantity.Mul(i.Price)
}

// Total sums the item subtotals.
func (s Sale) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// StockBalance is the on-hand quantity of a product in a store.
type StockBalance struct {
	StoreID   int64           `json:"store_id"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction types recorded in the stock ledger.
const (
	TxSale          = "SALE"
	TxPurchase      = "PURCHASE"
	TxAdjustment    = "ADJUSTMENT"
	TxPhysicalCount = "PHYSICAL_COUNT"
	TxTransferIn    = "TRANSFER_IN"
	TxTransferOut   = "TRANSFER_OUT"
)

// ProductTransaction is one append-only stock ledger entry.
type ProductTransaction struct {
	ID         int64           `json:"id"`
	StoreID    int64           `json:"store_id"`
	ProductID  int64           `json:"product_id"`
	Type       string          `json:"type"`
	QtyIn      decimal.Decimal `json:"qty_in"`
	QtyOut     decimal.Decimal `json:"qty_out"`
	Unit       string          `json:"unit"`
	RefCode    string          `json:"ref_code"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Net is QtyIn minus QtyOut.
func (t ProductTransaction) Net() decimal.Decimal {
	return t.QtyIn.Sub(t.QtyOut)
}

// Purchase is a purchase order from a supplier.
type Purchase struct {
	ID         int64           `json:"id"`
	Code       string          `json:"code"`
	SupplierID int64           `json:"supplier_id"`
	StoreID    int64           `json:"store_id"`
	Stage      shared.Stage    `json:"stage"`
	OrderedAt  time.Time       `json:"ordered_at"`
	Total      decimal.Decimal `json:"total"`
	Items      []PurchaseItem  `json:"items,omitempty"`
}

// PurchaseItem is one ordered product.
type PurchaseItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// Subtotal is quantity times unit cost.
func (i PurchaseItem) Subtotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitCost)
}

// Recalculate sets Total from the items, rounded to cents.
func (p *Purchase) Recalculate() {
	total := decimal.Zero
	for _, it := range p.Items {
		total = total.Add(it.Subtotal())
	}
	p.Total = total.Round(2)
}

// Collection is the tender breakdown of one receipt.
type Collection struct {
	ID          int64            `json:"id"`
	StoreID     int64            `json:"store_id"`
	ReceiptNo   string           `json:"receipt_no"`
	CollectedAt time.Time        `json:"collected_at"`
	Lines       []CollectionLine `json:"lines,omitempty"`
}

// CollectionLine is the amount paid with one payment type.
type CollectionLine struct {
	PaymentTypeID int64           `json:"payment_type_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// Total sums the collection lines.
func (c Collection) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Amount)
	}
	return total
}
