package reportquery

import "fmt"

// StockFilter narrows stock balance statements.
type StockFilter struct {
	StoreID    *int64
	CategoryID *int64
}

// SlowMovingFilter configures the slow-moving statement.
type SlowMovingFilter struct {
	StockFilter
	Window Range
	MaxQty int64
}

// ReorderFilter configures the reorder statement.
type ReorderFilter struct {
	StockFilter
	// IncludeOK also lists products above their reorder level.
	IncludeOK bool
}

// MovementFilter narrows product transaction history.
type MovementFilter struct {
	Range     Range
	StoreID   *int64
	ProductID *int64
	Type      string
}

func applyStockFilter(b *Builder, f StockFilter) {
	if f.StoreID != nil {
		b.Where("sb.store_id = " + b.Bind(*f.StoreID))
	}
	if f.CategoryID != nil {
		b.Need(TableProducts)
		b.Where("p.category_id = " + b.Bind(*f.CategoryID))
	}
}

// SlowMoving lists products with positive on-hand quantity whose sold
// quantity inside the window is at most MaxQty. On-hand is summed across
// stores unless a store is selected. Products without sales in the window
// count as zero sold.
func SlowMoving(f SlowMovingFilter) Statement {
	b := newBuilder("", nil)
	onHandWhere := ""
	soldWhere := "s.voided = FALSE"
	if f.StoreID != nil {
		store := b.Bind(*f.StoreID)
		onHandWhere = " WHERE sb.store_id = " + store
		soldWhere += " AND s.store_id = " + store
	}
	soldWhere += " AND s.sold_at >= " + b.Bind(f.Window.From)
	soldWhere += " AND s.sold_at < " + b.Bind(f.Window.To)

	b.From("(SELECT sb.product_id, SUM(sb.quantity) AS on_hand FROM stock_balances sb" + onHandWhere +
		" GROUP BY sb.product_id HAVING SUM(sb.quantity) > 0) oh" +
		" JOIN products p ON p.id = oh.product_id" +
		" LEFT JOIN categories c ON c.id = p.category_id" +
		" LEFT JOIN (SELECT si.product_id, SUM(si.quantity) AS qty FROM sales s" +
		" JOIN sale_items si ON si.sale_id = s.id WHERE " + soldWhere +
		" GROUP BY si.product_id) sold ON sold.product_id = p.id")
	b.Select(
		"p.id",
		"p.sku",
		"p.name",
		"COALESCE(c.name, 'Uncategorized')",
		"oh.on_hand",
		"COALESCE(sold.qty, 0) AS sold_qty",
	)
	b.Where("COALESCE(sold.qty, 0) <= " + b.Bind(f.MaxQty))
	if f.CategoryID != nil {
		b.Where("p.category_id = " + b.Bind(*f.CategoryID))
	}
	b.OrderBy("sold_qty ASC", "p.name ASC", "p.id ASC")
	return b.Statement("product_id", "sku", "product_name", "category_name", "on_hand", "sold_qty")
}

// LastSales returns the most recent non-voided sale time per product.
func LastSales(productIDs []int64, storeID *int64) Statement {
	b := NewSalesBuilder().Need(TableSaleItems)
	b.Select("si.product_id", "MAX(s.sold_at) AS last_sold_at")
	b.Where("si.product_id = ANY(" + b.Bind(productIDs) + ")")
	if storeID != nil {
		b.Where("s.store_id = " + b.Bind(*storeID))
	}
	b.GroupBy("si.product_id")
	b.OrderBy("si.product_id ASC")
	return b.Statement("product_id", "last_sold_at")
}

// Reorder lists store/product balances for products with a reorder level,
// restricted to on_hand <= reorder_level unless IncludeOK is set. Rows are
// ordered by store, then largest shortfall first.
func Reorder(f ReorderFilter) Statement {
	b := NewStockBuilder().Need(TableStores, TableCategories)
	b.Select(
		"st.id",
		"st.name",
		"p.id",
		"p.sku",
		"p.name",
		"COALESCE(c.name, 'Uncategorized')",
		"sb.quantity",
		"p.reorder_level",
	)
	b.Where("p.reorder_level IS NOT NULL")
	if !f.IncludeOK {
		b.Where("sb.quantity <= p.reorder_level")
	}
	applyStockFilter(b, f.StockFilter)
	b.OrderBy("st.name ASC", "st.id ASC", "(p.reorder_level - sb.quantity) DESC", "p.name ASC", "p.id ASC")
	return b.Statement("store_id", "store_name", "product_id", "sku", "product_name", "category_name", "on_hand", "reorder_level")
}

// Valuation values non-zero stock at product unit cost, grouped by g.
func Valuation(g GroupBy, f StockFilter) (Statement, error) {
	spec, ok := stockGroupSpecs[g]
	if !ok {
		return Statement{}, fmt.Errorf("%w: %q", ErrUnknownGroupBy, g)
	}
	b := NewStockBuilder().Need(TableProducts)
	b.Need(spec.Requires...)
	b.Select(
		spec.Key+" AS group_key",
		spec.Label+" AS group_label",
		"COALESCE(SUM(sb.quantity), 0) AS quantity",
		"COALESCE(SUM(sb.quantity * p.unit_cost), 0) AS stock_value",
	)
	b.Where("sb.quantity <> 0")
	applyStockFilter(b, f)
	b.GroupBy(spec.Columns...)
	b.OrderBy("stock_value DESC", spec.Columns[0]+" ASC")
	return b.Statement("group_key", "group_label", "quantity", "stock_value"), nil
}

const movementFrom = "product_transactions pt JOIN stores st ON st.id = pt.store_id JOIN products p ON p.id = pt.product_id"

func applyMovementFilter(b *Builder, f MovementFilter) {
	if !f.Range.From.IsZero() {
		b.Where("pt.occurred_at >= " + b.Bind(f.Range.From))
	}
	if !f.Range.To.IsZero() {
		b.Where("pt.occurred_at < " + b.Bind(f.Range.To))
	}
	if f.StoreID != nil {
		b.Where("pt.store_id = " + b.Bind(*f.StoreID))
	}
	if f.ProductID != nil {
		b.Where("pt.product_id = " + b.Bind(*f.ProductID))
	}
	if f.Type != "" {
		b.Where("pt.type = " + b.Bind(f.Type))
	}
}

// Movements pages through the stock movement log, newest first.
func Movements(f MovementFilter, limit, offset int) Statement {
	b := newBuilder(movementFrom, nil)
	b.Select(
		"pt.id",
		"pt.occurred_at",
		"st.id",
		"st.name",
		"p.id",
		"p.sku",
		"p.name",
		"pt.type",
		"pt.qty_in",
		"pt.qty_out",
		"pt.unit",
		"pt.ref_code",
	)
	applyMovementFilter(b, f)
	b.OrderBy("pt.occurred_at DESC", "pt.id DESC")
	b.Page(limit, offset)
	return b.Statement("id", "occurred_at", "store_id", "store_name", "product_id", "sku", "product_name", "type", "qty_in", "qty_out", "unit", "ref_code")
}

// MovementCount counts the rows Movements pages through.
func MovementCount(f MovementFilter) Statement {
	b := newBuilder("product_transactions pt", nil)
	b.Select("COUNT(*)")
	applyMovementFilter(b, f)
	return b.Statement("count")
}
