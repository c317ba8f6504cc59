package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeops/internal/platform/db"
	"github.com/odyssey-erp/storeops/internal/reportquery"
)

// Repository runs report statements against PostgreSQL.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs a Repository.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) query(ctx context.Context, stmt reportquery.Statement) (pgx.Rows, error) {
	rows, err := r.db.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %v: %w", stmt.Columns, err)
	}
	return rows, nil
}

func (r *Repository) count(ctx context.Context, stmt reportquery.Statement) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// SalesRows returns grouped sales with raw group labels.
func (r *Repository) SalesRows(ctx context.Context, g reportquery.GroupBy, f reportquery.SalesFilter) ([]SalesRow, error) {
	stmt, err := reportquery.SalesSummary(g, f, reportquery.SalesSummaryAggregates)
	if err != nil {
		return nil, err
	}
	rows, err := r.query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SalesRow, error) {
		var s SalesRow
		err := row.Scan(&s.Key, &s.Label, &s.SalesAmount, &s.Quantity, &s.Transactions)
		return s, err
	})
}

// SalesTotal returns the overall sales amount used as percentage base.
func (r *Repository) SalesTotal(ctx context.Context, f reportquery.SalesFilter) (decimal.Decimal, error) {
	stmt := reportquery.SalesTotal(f)
	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, stmt.SQL, stmt.Args...).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sales total: %w", err)
	}
	return total, nil
}

// SlowMoving returns slow-moving products without last sale dates.
func (r *Repository) SlowMoving(ctx context.Context, f reportquery.SlowMovingFilter) ([]SlowMovingRow, error) {
	rows, err := r.query(ctx, reportquery.SlowMoving(f))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SlowMovingRow, error) {
		var s SlowMovingRow
		err := row.Scan(&s.ProductID, &s.SKU, &s.ProductName, &s.CategoryName, &s.OnHand, &s.SoldQty)
		return s, err
	})
}

// LastSales maps product id to its most recent non-voided sale.
func (r *Repository) LastSales(ctx context.Context, productIDs []int64, storeID *int64) (map[int64]time.Time, error) {
	out := make(map[int64]time.Time, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := r.query(ctx, reportquery.LastSales(productIDs, storeID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id int64
			at time.Time
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		out[id] = at
	}
	return out, rows.Err()
}

// Reorder returns balances with a reorder level, before evaluation.
func (r *Repository) Reorder(ctx context.Context, f reportquery.ReorderFilter) ([]ReorderRow, error) {
	rows, err := r.query(ctx, reportquery.Reorder(f))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ReorderRow, error) {
		var s ReorderRow
		err := row.Scan(&s.StoreID, &s.StoreName, &s.ProductID, &s.SKU, &s.ProductName, &s.CategoryName, &s.OnHand, &s.ReorderLevel)
		return s, err
	})
}

// Valuation returns grouped stock value with raw labels.
func (r *Repository) Valuation(ctx context.Context, g reportquery.GroupBy, f reportquery.StockFilter) ([]ValuationRow, error) {
	stmt, err := reportquery.Valuation(g, f)
	if err != nil {
		return nil, err
	}
	rows, err := r.query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ValuationRow, error) {
		var s ValuationRow
		err := row.Scan(&s.Key, &s.Label, &s.Quantity, &s.Value)
		return s, err
	})
}

// Movements returns one page of product transactions.
func (r *Repository) Movements(ctx context.Context, f reportquery.MovementFilter, limit, offset int) ([]MovementRow, error) {
	rows, err := r.query(ctx, reportquery.Movements(f, limit, offset))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MovementRow, error) {
		var m MovementRow
		err := row.Scan(&m.ID, &m.OccurredAt, &m.StoreID, &m.StoreName, &m.ProductID, &m.SKU, &m.ProductName,
			&m.Type, &m.QtyIn, &m.QtyOut, &m.Unit, &m.RefCode)
		return m, err
	})
}

// CountMovements counts the transactions matching f.
func (r *Repository) CountMovements(ctx context.Context, f reportquery.MovementFilter) (int, error) {
	return r.count(ctx, reportquery.MovementCount(f))
}

// Purchases returns one page of purchases.
func (r *Repository) Purchases(ctx context.Context, f reportquery.PurchaseFilter, limit, offset int) ([]PurchaseRow, error) {
	rows, err := r.query(ctx, reportquery.Purchases(f, limit, offset))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PurchaseRow, error) {
		var p PurchaseRow
		err := row.Scan(&p.ID, &p.Code, &p.OrderedAt, &p.SupplierID, &p.SupplierName, &p.StoreID, &p.StoreName,
			&p.Stage, &p.Total, &p.ItemCount)
		return p, err
	})
}

// CountPurchases counts the purchases matching f.
func (r *Repository) CountPurchases(ctx context.Context, f reportquery.PurchaseFilter) (int, error) {
	return r.count(ctx, reportquery.PurchaseCount(f))
}

// Collections returns per payment type totals.
func (r *Repository) Collections(ctx context.Context, f reportquery.CollectionFilter) ([]CollectionRow, error) {
	rows, err := r.query(ctx, reportquery.Collections(f))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (CollectionRow, error) {
		var c CollectionRow
		err := row.Scan(&c.PaymentTypeID, &c.PaymentTypeName, &c.Amount, &c.Receipts)
		return c, err
	})
}

// CountReceipts counts the distinct receipts matching f.
func (r *Repository) CountReceipts(ctx context.Context, f reportquery.CollectionFilter) (int64, error) {
	n, err := r.count(ctx, reportquery.CollectionReceipts(f))
	return int64(n), err
}

// Custom runs a custom spec. Every projected value is text; NULLs become
// empty strings.
func (r *Repository) Custom(ctx context.Context, spec reportquery.CustomSpec) ([]string, [][]string, error) {
	stmt, err := reportquery.BuildCustom(spec)
	if err != nil {
		return nil, nil, err
	}
	rows, err := r.query(ctx, stmt)
	if err != nil {
		return nil, nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]string, error) {
		cells := make([]*string, len(stmt.Columns))
		dest := make([]any, len(cells))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := row.Scan(dest...); err != nil {
			return nil, err
		}
		values := make([]string, len(cells))
		for i, c := range cells {
			if c != nil {
				values[i] = *c
			}
		}
		return values, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return stmt.Columns, out, nil
}
