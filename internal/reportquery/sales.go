package reportquery

import (
	"errors"
	"time"
)

// Range is the half-open interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// SalesFilter narrows sales statements. Nil ids are not applied.
type SalesFilter struct {
	Range      Range
	StoreID    *int64
	CategoryID *int64
	ProductID  *int64
}

// ErrNoAggregates is returned when a grouped statement projects nothing.
var ErrNoAggregates = errors.New("reportquery: at least one aggregate is required")

// SalesSummaryAggregates are the projections of the standard sales report.
var SalesSummaryAggregates = []Aggregate{AggSalesAmount, AggQuantity, AggTransactions}

func applySalesFilter(b *Builder, f SalesFilter, narrow bool) {
	if !f.Range.From.IsZero() {
		b.Where("s.sold_at >= " + b.Bind(f.Range.From))
	}
	if !f.Range.To.IsZero() {
		b.Where("s.sold_at < " + b.Bind(f.Range.To))
	}
	if f.StoreID != nil {
		b.Where("s.store_id = " + b.Bind(*f.StoreID))
	}
	if !narrow {
		return
	}
	if f.CategoryID != nil {
		b.Need(TableProducts)
		b.Where("p.category_id = " + b.Bind(*f.CategoryID))
	}
	if f.ProductID != nil {
		b.Need(TableSaleItems)
		b.Where("si.product_id = " + b.Bind(*f.ProductID))
	}
}

// SalesSummary groups non-voided sales by g. Result columns are group_key,
// group_label, then one column per aggregate. Chronological groupings are
// ordered oldest first; entity groupings by the first aggregate descending.
func SalesSummary(g GroupBy, f SalesFilter, aggs []Aggregate) (Statement, error) {
	spec, err := SalesGroupSpec(g)
	if err != nil {
		return Statement{}, err
	}
	if len(aggs) == 0 {
		return Statement{}, ErrNoAggregates
	}
	b := NewSalesBuilder()
	b.Need(spec.Requires...)
	label := spec.Label
	if label == "" {
		label = "''"
	}
	b.Select(spec.Key+" AS group_key", label+" AS group_label")
	if err := applyAggregates(b, aggs); err != nil {
		return Statement{}, err
	}
	applySalesFilter(b, f, true)
	if err := checkGrain(b, aggs); err != nil {
		return Statement{}, err
	}
	b.GroupBy(spec.Columns...)
	if spec.Chronological {
		b.OrderBy("group_key ASC")
	} else {
		b.OrderBy(string(aggs[0])+" DESC", spec.Columns[0]+" ASC")
	}
	columns := []string{"group_key", "group_label"}
	for _, a := range aggs {
		columns = append(columns, string(a))
	}
	return b.Statement(columns...), nil
}

// SalesTotal is the overall sales amount for the range and store. Product
// and category filters are not applied: the result is the
// denominator of percentage-of-total columns.
func SalesTotal(f SalesFilter) Statement {
	b := NewSalesBuilder().Need(TableSaleItems)
	b.Select(aggregateSpecs[AggSalesAmount].expr + " AS sales_amount")
	applySalesFilter(b, f, false)
	return b.Statement("sales_amount")
}
