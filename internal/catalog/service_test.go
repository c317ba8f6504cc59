package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	stores      []Store
	products    []Product
	productsErr error
	lastCat     *int64
	existing    map[Kind]map[int64]bool
}

func (s *stubReader) Exists(ctx context.Context, kind Kind, id int64) (bool, error) {
	return s.existing[kind][id], nil
}

func (s *stubReader) ListStores(ctx context.Context) ([]Store, error) { return s.stores, nil }

func (s *stubReader) ListCategories(ctx context.Context) ([]Category, error) {
	return []Category{{ID: 1, Name: "Beverages"}}, nil
}

func (s *stubReader) ListProducts(ctx context.Context, categoryID *int64) ([]Product, error) {
	s.lastCat = categoryID
	return s.products, s.productsErr
}

func (s *stubReader) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return []Supplier{{ID: 3, Name: "Acme"}}, nil
}

func (s *stubReader) ListPaymentTypes(ctx context.Context) ([]PaymentType, error) {
	return []PaymentType{{ID: 1, Name: "Cash", Active: true}}, nil
}

func TestLookupsLoadsEveryList(t *testing.T) {
	cat := int64(1)
	repo := &stubReader{
		stores:   []Store{{ID: 1, Name: "Main"}},
		products: []Product{{ID: 9, Name: "Cola", CategoryID: &cat}},
	}
	svc := NewService(repo)

	lookups, err := svc.Lookups(context.Background(), &cat)
	require.NoError(t, err)
	assert.Len(t, lookups.Stores, 1)
	assert.Len(t, lookups.Categories, 1)
	assert.Len(t, lookups.Products, 1)
	assert.Len(t, lookups.Suppliers, 1)
	assert.Len(t, lookups.PaymentTypes, 1)
	require.NotNil(t, repo.lastCat)
	assert.Equal(t, int64(1), *repo.lastCat)
}

func TestLookupsPropagatesError(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(&stubReader{productsErr: boom})

	_, err := svc.Lookups(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestExistsDelegates(t *testing.T) {
	svc := NewService(&stubReader{existing: map[Kind]map[int64]bool{KindStore: {4: true}}})
	ok, err := svc.Exists(context.Background(), KindStore, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.Exists(context.Background(), KindStore, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProductValidate(t *testing.T) {
	neg := decimal.NewFromInt(-1)
	zero := decimal.Zero
	assert.ErrorIs(t, Product{ReorderLevel: &neg}.Validate(), ErrNegativeReorderLevel)
	assert.NoError(t, Product{ReorderLevel: &zero}.Validate())
	assert.NoError(t, Product{}.Validate())
	assert.ErrorIs(t, Product{UnitCost: decimal.NewFromInt(-2)}.Validate(), ErrNegativeUnitCost)
	assert.False(t, Product{}.HasReorderLevel())
}
