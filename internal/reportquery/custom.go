package reportquery

import (
	"errors"
	"fmt"
	"strings"
)

// Column is the closed set of detail columns the custom report may list.
type Column string

const (
	ColSaleID   Column = "sale_id"
	ColSoldAt   Column = "sold_at"
	ColStore    Column = "store"
	ColProduct  Column = "product"
	ColSKU      Column = "sku"
	ColCategory Column = "category"
	ColQuantity Column = "quantity"
	ColPrice    Column = "price"
	ColSubtotal Column = "subtotal"
)

const (
	// DefaultCustomLimit applies when a custom spec leaves Limit at zero.
	DefaultCustomLimit = 100
	// MaxCustomLimit caps custom report rows.
	MaxCustomLimit = 500
	// MaxCustomGroups caps grouping depth.
	MaxCustomGroups = 3
)

var (
	ErrUnknownColumn = errors.New("reportquery: unknown column")
	ErrEmptySpec     = errors.New("reportquery: select columns or aggregates")
	ErrMixedSpec     = errors.New("reportquery: columns cannot be combined with group by or aggregates")
	ErrDuplicate     = errors.New("reportquery: duplicate selection")
	ErrTooManyGroups = errors.New("reportquery: too many group by keys")
	ErrUnknownSort   = errors.New("reportquery: sort must name a selected column, group or aggregate")
)

type columnSpec struct {
	expr     string
	sort     string
	requires []Table
}

var columnSpecs = map[Column]columnSpec{
	ColSaleID:   {expr: "s.id::text", sort: "s.id"},
	ColSoldAt:   {expr: "to_char(s.sold_at, 'YYYY-MM-DD HH24:MI')", sort: "s.sold_at"},
	ColStore:    {expr: "st.name", sort: "st.name", requires: []Table{TableStores}},
	ColProduct:  {expr: "p.name", sort: "p.name", requires: []Table{TableProducts}},
	ColSKU:      {expr: "p.sku", sort: "p.sku", requires: []Table{TableProducts}},
	ColCategory: {expr: "COALESCE(c.name, 'Uncategorized')", sort: "c.name", requires: []Table{TableCategories}},
	ColQuantity: {expr: "si.quantity::text", sort: "si.quantity", requires: []Table{TableSaleItems}},
	ColPrice:    {expr: "si.price::text", sort: "si.price", requires: []Table{TableSaleItems}},
	ColSubtotal: {expr: "(si.quantity * si.price)::text", sort: "(si.quantity * si.price)", requires: []Table{TableSaleItems}},
}

// Columns lists every detail column in display order.
var Columns = []Column{ColSaleID, ColSoldAt, ColStore, ColProduct, ColSKU, ColCategory, ColQuantity, ColPrice, ColSubtotal}

// ParseColumn validates s against the allow-list.
func ParseColumn(s string) (Column, error) {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := columnSpecs[c]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownColumn, s)
}

// CustomSpec is a user-composed report. It lists either detail Columns or
// a summary of Aggregates optionally grouped by GroupBy. Every element is
// drawn from a closed enumeration.
type CustomSpec struct {
	Columns    []Column
	GroupBy    []GroupBy
	Aggregates []Aggregate
	Filter     SalesFilter
	SortBy     string
	Desc       bool
	Limit      int
}

// Summary reports whether the spec aggregates rather than lists detail rows.
func (c CustomSpec) Summary() bool {
	return len(c.Aggregates) > 0
}

// Validate checks the spec's shape. It does not check referenced ids.
func (c CustomSpec) Validate() error {
	if len(c.Columns) == 0 && len(c.Aggregates) == 0 {
		return ErrEmptySpec
	}
	if len(c.Columns) > 0 && (len(c.Aggregates) > 0 || len(c.GroupBy) > 0) {
		return ErrMixedSpec
	}
	if len(c.GroupBy) > MaxCustomGroups {
		return ErrTooManyGroups
	}
	seen := map[string]bool{}
	for _, col := range c.Columns {
		if _, ok := columnSpecs[col]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
		if seen[string(col)] {
			return fmt.Errorf("%w: %s", ErrDuplicate, col)
		}
		seen[string(col)] = true
	}
	for _, g := range c.GroupBy {
		if _, ok := salesGroupSpecs[g]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownGroupBy, g)
		}
		if seen[string(g)] {
			return fmt.Errorf("%w: %s", ErrDuplicate, g)
		}
		seen[string(g)] = true
	}
	for _, a := range c.Aggregates {
		if _, ok := aggregateSpecs[a]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownAggregate, a)
		}
		if seen[string(a)] {
			return fmt.Errorf("%w: %s", ErrDuplicate, a)
		}
		seen[string(a)] = true
	}
	if c.SortBy != "" && !seen[c.SortBy] {
		return fmt.Errorf("%w: %q", ErrUnknownSort, c.SortBy)
	}
	return nil
}

// EffectiveLimit clamps Limit to [1, MaxCustomLimit].
func (c CustomSpec) EffectiveLimit() int {
	switch {
	case c.Limit <= 0:
		return DefaultCustomLimit
	case c.Limit > MaxCustomLimit:
		return MaxCustomLimit
	}
	return c.Limit
}

// BuildCustom renders a validated spec. Every projected value is text.
// Summary statements project "<group>_key" and "<group>" per grouping
// followed by one column per aggregate; detail statements project the
// requested columns.
func BuildCustom(c CustomSpec) (Statement, error) {
	if err := c.Validate(); err != nil {
		return Statement{}, err
	}
	b := NewSalesBuilder()
	applySalesFilter(b, c.Filter, true)
	dir := " ASC"
	if c.Desc {
		dir = " DESC"
	}
	var columns []string
	if c.Summary() {
		for _, g := range c.GroupBy {
			spec := salesGroupSpecs[g]
			b.Need(spec.Requires...)
			label := spec.Label
			if label == "" {
				label = "''"
			}
			b.Select(spec.Key+" AS "+string(g)+"_key", label+" AS "+string(g))
			b.GroupBy(spec.Columns...)
			columns = append(columns, string(g)+"_key", string(g))
		}
		for _, a := range c.Aggregates {
			spec := aggregateSpecs[a]
			b.Need(spec.requires...)
			b.Select("(" + spec.expr + ")::text AS " + string(a))
			columns = append(columns, string(a))
		}
		if c.SortBy != "" {
			b.OrderBy(customSortExpr(c.SortBy) + dir)
		}
		for _, g := range c.GroupBy {
			b.OrderBy(salesGroupSpecs[g].Columns...)
		}
	} else {
		for _, col := range c.Columns {
			spec := columnSpecs[col]
			b.Need(spec.requires...)
			b.Select(spec.expr + " AS " + string(col))
			columns = append(columns, string(col))
		}
		if c.SortBy != "" {
			b.OrderBy(customSortExpr(c.SortBy) + dir)
		}
		b.OrderBy("s.id ASC")
		if b.Joined(TableSaleItems) {
			b.OrderBy("si.id ASC")
		}
	}
	if err := checkGrain(b, c.Aggregates); err != nil {
		return Statement{}, err
	}
	// One extra row tells the caller whether the result was cut off.
	b.Page(c.EffectiveLimit()+1, 0)
	return b.Statement(columns...), nil
}

func customSortExpr(name string) string {
	if spec, ok := columnSpecs[Column(name)]; ok {
		return spec.sort
	}
	if spec, ok := aggregateSpecs[Aggregate(name)]; ok {
		return spec.expr
	}
	if spec, ok := salesGroupSpecs[GroupBy(name)]; ok {
		if spec.Chronological {
			return spec.Columns[0]
		}
		return spec.Label
	}
	return "1"
}
