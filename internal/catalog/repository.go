package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/storeops/internal/platform/db"
)

// Repository reads reference data from PostgreSQL.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs Repository.
func NewRepository(conn db.DBTX) *Repository {
	return &Repository{db: conn}
}

var existsQueries = map[Kind]string{
	KindStore:       `SELECT EXISTS (SELECT 1 FROM stores WHERE id = $1)`,
	KindCategory:    `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`,
	KindProduct:     `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`,
	KindSupplier:    `SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1)`,
	KindPaymentType: `SELECT EXISTS (SELECT 1 FROM payment_types WHERE id = $1)`,
}

// Exists reports whether a record of kind with id exists.
func (r *Repository) Exists(ctx context.Context, kind Kind, id int64) (bool, error) {
	query, ok := existsQueries[kind]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	var exists bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("catalog: %s exists: %w", kind, err)
	}
	return exists, nil
}

// ListStores returns stores ordered by name.
func (r *Repository) ListStores(ctx context.Context) ([]Store, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM stores ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list stores: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Store, error) {
		var s Store
		err := row.Scan(&s.ID, &s.Name)
		return s, err
	})
}

// ListCategories returns categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Category, error) {
		var c Category
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
}

// ListSuppliers returns suppliers ordered by name.
func (r *Repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM suppliers ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list suppliers: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Supplier, error) {
		var s Supplier
		err := row.Scan(&s.ID, &s.Name)
		return s, err
	})
}

// ListProducts returns products ordered by name, optionally limited to a category.
func (r *Repository) ListProducts(ctx context.Context, categoryID *int64) ([]Product, error) {
	query := `SELECT id, sku, name, category_id, unit_cost, reorder_level FROM products`
	args := []any{}
	if categoryID != nil {
		query += ` WHERE category_id = $1`
		args = append(args, *categoryID)
	}
	query += ` ORDER BY name, id`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		var p Product
		err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.CategoryID, &p.UnitCost, &p.ReorderLevel)
		return p, err
	})
}

// ListPaymentTypes returns payment types ordered by id, the order receipts print them.
func (r *Repository) ListPaymentTypes(ctx context.Context) ([]PaymentType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, active FROM payment_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list payment types: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PaymentType, error) {
		var p PaymentType
		err := row.Scan(&p.ID, &p.Name, &p.Active)
		return p, err
	})
}
