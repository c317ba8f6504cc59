// Package catalog holds the reference records reports filter and group by:
// stores, categories, products, suppliers and payment types.
package catalog

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Store is a selling location holding stock.
type Store struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Category groups products.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Supplier provides purchased goods.
type Supplier struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Product is a sellable item. ReorderLevel is nil when the product is not
// replenished against a level.
type Product struct {
	ID           int64            `json:"id"`
	SKU          string           `json:"sku"`
	Name         string           `json:"name"`
	CategoryID   *int64           `json:"category_id,omitempty"`
	UnitCost     decimal.Decimal  `json:"unit_cost"`
	ReorderLevel *decimal.Decimal `json:"reorder_level,omitempty"`
}

// PaymentType is a tender configured at runtime (cash, card, voucher...).
type PaymentType struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Lookups bundles the dropdown lists returned with every report page.
type Lookups struct {
	Stores       []Store       `json:"stores"`
	Categories   []Category    `json:"categories"`
	Products     []Product     `json:"products"`
	Suppliers    []Supplier    `json:"suppliers"`
	PaymentTypes []PaymentType `json:"payment_types"`
}

// Kind names a referenceable entity for existence checks.
type Kind string

const (
	KindStore       Kind = "store"
	KindCategory    Kind = "category"
	KindProduct     Kind = "product"
	KindSupplier    Kind = "supplier"
	KindPaymentType Kind = "payment_type"
)

var (
	// ErrNegativeReorderLevel is returned when a reorder level is below zero.
	ErrNegativeReorderLevel = errors.New("catalog: reorder level must not be negative")
	// ErrNegativeUnitCost is returned when a unit cost is below zero.
	ErrNegativeUnitCost = errors.New("catalog: unit cost must not be negative")
	// ErrUnknownKind is returned for an entity kind without a backing table.
	ErrUnknownKind = errors.New("catalog: unknown entity kind")
)

// Validate checks the product invariants.
func (p Product) Validate() error {
	if p.ReorderLevel != nil && p.ReorderLevel.IsNegative() {
		return ErrNegativeReorderLevel
	}
	if p.UnitCost.IsNegative() {
		return ErrNegativeUnitCost
	}
	return nil
}

// HasReorderLevel reports whether the product participates in reorder reports.
func (p Product) HasReorderLevel() bool {
	return p.ReorderLevel != nil
}
