package catalog

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Reader is the read surface the service needs from persistence.
type Reader interface {
	Exists(ctx context.Context, kind Kind, id int64) (bool, error)
	ListStores(ctx context.Context) ([]Store, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context, categoryID *int64) ([]Product, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	ListPaymentTypes(ctx context.Context) ([]PaymentType, error)
}

// Service serves lookup lists and existence checks.
type Service struct {
	repo Reader
}

// NewService constructs Service.
func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// Exists reports whether the referenced record exists.
func (s *Service) Exists(ctx context.Context, kind Kind, id int64) (bool, error) {
	return s.repo.Exists(ctx, kind, id)
}

// Stores lists all stores.
func (s *Service) Stores(ctx context.Context) ([]Store, error) {
	return s.repo.ListStores(ctx)
}

// Lookups loads every dropdown list in parallel. The product list is
// narrowed to categoryID when set.
func (s *Service) Lookups(ctx context.Context, categoryID *int64) (Lookups, error) {
	var out Lookups
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.repo.ListStores(ctx)
		out.Stores = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.repo.ListCategories(ctx)
		out.Categories = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.repo.ListProducts(ctx, categoryID)
		out.Products = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.repo.ListSuppliers(ctx)
		out.Suppliers = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.repo.ListPaymentTypes(ctx)
		out.PaymentTypes = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return Lookups{}, err
	}
	return out, nil
}
