package reportquery

import (
	"errors"
	"fmt"
	"strings"
)

// Aggregate is the closed set of projections a report may request.
type Aggregate string

const (
	AggSalesAmount  Aggregate = "sales_amount"
	AggQuantity     Aggregate = "quantity"
	AggTransactions Aggregate = "transactions"
	AggPaidAmount   Aggregate = "paid_amount"
	AggAveragePrice Aggregate = "average_price"
	AggLineCount    Aggregate = "line_count"
)

var (
	// ErrUnknownAggregate is returned for a projection outside the allow-list.
	ErrUnknownAggregate = errors.New("reportquery: unknown aggregate")
	// ErrGrainConflict is returned when a sale-level amount would be summed
	// over item rows and counted once per item.
	ErrGrainConflict = errors.New("reportquery: paid_amount cannot be combined with item-level grouping, filters or aggregates")
)

type aggregateSpec struct {
	expr     string
	requires []Table
	// saleSum marks sums over sale header columns, which inflate once
	// sale_items is joined.
	saleSum bool
}

var aggregateSpecs = map[Aggregate]aggregateSpec{
	AggSalesAmount:  {expr: "COALESCE(SUM(si.quantity * si.price), 0)", requires: []Table{TableSaleItems}},
	AggQuantity:     {expr: "COALESCE(SUM(si.quantity), 0)", requires: []Table{TableSaleItems}},
	AggTransactions: {expr: "COUNT(DISTINCT s.id)"},
	AggPaidAmount:   {expr: "COALESCE(SUM(s.paid_amount), 0)", saleSum: true},
	AggAveragePrice: {expr: "COALESCE(ROUND(AVG(si.price), 2), 0)", requires: []Table{TableSaleItems}},
	AggLineCount:    {expr: "COUNT(si.id)", requires: []Table{TableSaleItems}},
}

// Aggregates lists every aggregate in display order.
var Aggregates = []Aggregate{AggSalesAmount, AggQuantity, AggTransactions, AggPaidAmount, AggAveragePrice, AggLineCount}

// ParseAggregate validates s against the allow-list.
func ParseAggregate(s string) (Aggregate, error) {
	a := Aggregate(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := aggregateSpecs[a]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAggregate, s)
}

// applyAggregates projects aggs onto b, aliasing each by its name.
func applyAggregates(b *Builder, aggs []Aggregate) error {
	for _, a := range aggs {
		spec, ok := aggregateSpecs[a]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownAggregate, a)
		}
		b.Need(spec.requires...)
		b.Select(spec.expr + " AS " + string(a))
	}
	return nil
}

// checkGrain must run after every join of the statement is known.
func checkGrain(b *Builder, aggs []Aggregate) error {
	for _, a := range aggs {
		if aggregateSpecs[a].saleSum && b.Joined(TableSaleItems) {
			return ErrGrainConflict
		}
	}
	return nil
}
