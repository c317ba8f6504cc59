// Package reportquery assembles report SQL from closed enumerations of
// groupings, aggregates and columns. Callers never supply SQL text: every
// expression comes from the allow-lists in this package and every value is
// bound as a placeholder argument.
package reportquery

import (
	"strconv"
	"strings"
)

// Table identifies a joinable table relative to a statement's base table.
type Table int

const (
	TableSales Table = iota
	TableStores
	TableSaleItems
	TableProducts
	TableCategories
)

// Statement is a ready-to-run query with its bound arguments.
type Statement struct {
	SQL     string
	Args    []any
	Columns []string
}

type join struct {
	table    Table
	clause   string
	requires []Table
}

// salesJoins is the chain sale -> sale item -> product -> category, plus the
// store a sale belongs to. Joins are emitted in this order no matter the
// order they were requested in.
var salesJoins = []join{
	{table: TableStores, clause: "JOIN stores st ON st.id = s.store_id"},
	{table: TableSaleItems, clause: "JOIN sale_items si ON si.sale_id = s.id"},
	{table: TableProducts, clause: "JOIN products p ON p.id = si.product_id", requires: []Table{TableSaleItems}},
	{table: TableCategories, clause: "LEFT JOIN categories c ON c.id = p.category_id", requires: []Table{TableProducts}},
}

// stockJoins hang off stock_balances sb.
var stockJoins = []join{
	{table: TableStores, clause: "JOIN stores st ON st.id = sb.store_id"},
	{table: TableProducts, clause: "JOIN products p ON p.id = sb.product_id"},
	{table: TableCategories, clause: "LEFT JOIN categories c ON c.id = p.category_id", requires: []Table{TableProducts}},
}

// Builder accumulates the clauses of a single SELECT.
type Builder struct {
	from    string
	joins   []join
	needed  map[Table]bool
	selects []string
	where   []string
	args    []any
	groupBy []string
	having  []string
	orderBy []string
	limit   int
	offset  int
}

func newBuilder(from string, joins []join) *Builder {
	return &Builder{from: from, joins: joins, needed: map[Table]bool{}}
}

// NewSalesBuilder starts a statement over non-voided sales.
func NewSalesBuilder() *Builder {
	b := newBuilder("sales s", salesJoins)
	b.Where("s.voided = FALSE")
	return b
}

// NewStockBuilder starts a statement over current stock balances.
func NewStockBuilder() *Builder {
	return newBuilder("stock_balances sb", stockJoins)
}

// Need marks tables (and the tables they depend on) as joined.
func (b *Builder) Need(tables ...Table) *Builder {
	for _, t := range tables {
		if b.needed[t] {
			continue
		}
		b.needed[t] = true
		for _, j := range b.joins {
			if j.table == t {
				b.Need(j.requires...)
			}
		}
	}
	return b
}

// Joined reports whether t will be joined.
func (b *Builder) Joined(t Table) bool {
	return b.needed[t]
}

// Bind appends a value and returns its placeholder.
func (b *Builder) Bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// From replaces the base relation. Placeholders inside it must have been
// produced by Bind on this builder.
func (b *Builder) From(from string) *Builder {
	b.from = from
	return b
}

// Select appends projections.
func (b *Builder) Select(exprs ...string) *Builder {
	b.selects = append(b.selects, exprs...)
	return b
}

// Where appends an AND-ed predicate.
func (b *Builder) Where(cond string) *Builder {
	b.where = append(b.where, cond)
	return b
}

// GroupBy appends grouping expressions.
func (b *Builder) GroupBy(exprs ...string) *Builder {
	b.groupBy = append(b.groupBy, exprs...)
	return b
}

// Having appends an AND-ed group predicate.
func (b *Builder) Having(cond string) *Builder {
	b.having = append(b.having, cond)
	return b
}

// OrderBy appends ordering terms.
func (b *Builder) OrderBy(terms ...string) *Builder {
	b.orderBy = append(b.orderBy, terms...)
	return b
}

// Page sets LIMIT and OFFSET. Zero limit means unbounded.
func (b *Builder) Page(limit, offset int) *Builder {
	b.limit = limit
	b.offset = offset
	return b
}

// Build renders the SQL and returns a copy of the arguments.
func (b *Builder) Build() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.selects, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.from)
	for _, j := range b.joins {
		if b.needed[j.table] {
			sb.WriteString(" ")
			sb.WriteString(j.clause)
		}
	}
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBy, ", "))
	}
	if len(b.having) > 0 {
		sb.WriteString(" HAVING ")
		sb.WriteString(strings.Join(b.having, " AND "))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	args := append([]any(nil), b.args...)
	if b.limit > 0 {
		args = append(args, b.limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
		if b.offset > 0 {
			args = append(args, b.offset)
			sb.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
		}
	}
	return sb.String(), args
}

// Statement renders the builder with result column names attached.
func (b *Builder) Statement(columns ...string) Statement {
	sql, args := b.Build()
	return Statement{SQL: sql, Args: args, Columns: columns}
}
