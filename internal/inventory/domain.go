// Package inventory records stock adjustments and physical counts. Documents
// are edited as drafts and change stock balances only when committed.
package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeops/internal/catalog"
	"github.com/odyssey-erp/storeops/internal/shared"
)

// Kind distinguishes the two stock document types.
type Kind string

const (
	// KindAdjustment lines carry a signed quantity delta.
	KindAdjustment Kind = "adjustment"
	// KindPhysicalCount lines carry the counted quantity on hand.
	KindPhysicalCount Kind = "physical_count"
)

// codePrefix returns the document code prefix for k.
func (k Kind) codePrefix() string {
	if k == KindPhysicalCount {
		return "CNT"
	}
	return "ADJ"
}

// MovementType is the product_transactions type written on commit.
func (k Kind) MovementType() string {
	if k == KindPhysicalCount {
		return catalog.TxPhysicalCount
	}
	return catalog.TxAdjustment
}

// Document is a stock adjustment or physical count.
type Document struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	Kind        Kind            `json:"kind"`
	StoreID     int64           `json:"store_id"`
	Stage       shared.Stage    `json:"stage"`
	Note        string          `json:"note"`
	Lines       []Line          `json:"lines"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CommittedAt *time.Time      `json:"committed_at,omitempty"`
	Movements   []Movement      `json:"movements,omitempty"`
	Totals      *DocumentTotals `json:"totals,omitempty"`
}

// Line is one product on a document. For adjustments Quantity is the
// delta; for physical counts it is the counted quantity.
type Line struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Movement is the stock change a committed line produced.
type Movement struct {
	ProductID int64           `json:"product_id"`
	Before    decimal.Decimal `json:"before"`
	After     decimal.Decimal `json:"after"`
	Delta     decimal.Decimal `json:"delta"`
}

// DocumentTotals summarises the movements of a commit.
type DocumentTotals struct {
	QtyIn  decimal.Decimal `json:"qty_in"`
	QtyOut decimal.Decimal `json:"qty_out"`
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Kind    Kind        `json:"kind" validate:"required,oneof=adjustment physical_count"`
	StoreID int64       `json:"store_id" validate:"required,gte=1"`
	Note    string      `json:"note" validate:"max=500"`
	Lines   []LineInput `json:"lines" validate:"required,min=1,max=500,dive"`
}

// UpdateInput replaces the note and lines of a draft.
type UpdateInput struct {
	Note  string      `json:"note" validate:"max=500"`
	Lines []LineInput `json:"lines" validate:"required,min=1,max=500,dive"`
}

// LineInput is a requested document line.
type LineInput struct {
	ProductID int64           `json:"product_id" validate:"required,gte=1"`
	Quantity  decimal.Decimal `json:"quantity"`
}

var (
	// ErrDocumentNotFound is returned for unknown document ids.
	ErrDocumentNotFound = fmt.Errorf("inventory: document %w", shared.ErrNotFound)
	// ErrNotEditable is returned when a non-draft document is changed.
	ErrNotEditable = fmt.Errorf("inventory: document is not a draft: %w", shared.ErrConflict)
	// ErrNegativeStock is returned when a commit would leave a balance below zero.
	ErrNegativeStock = fmt.Errorf("inventory: negative stock not allowed: %w", shared.ErrConflict)
)
