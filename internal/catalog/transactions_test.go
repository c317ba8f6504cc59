package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSaleTotalSumsSubtotals(t *testing.T) {
	sale := Sale{Items: []SaleItem{
		{ProductID: 1, Quantity: dec("3"), Price: dec("2.50")},
		{ProductID: 2, Quantity: dec("0.5"), Price: dec("4.00")},
	}}
	assert.True(t, sale.Items[0].Subtotal().Equal(dec("7.50")))
	assert.True(t, sale.Total().Equal(dec("9.50")))
	assert.True(t, Sale{}.Total().IsZero())
}

func TestPurchaseRecalculate(t *testing.T) {
	p := Purchase{Total: dec("999"), Items: []PurchaseItem{
		{ProductID: 1, Quantity: dec("12"), UnitCost: dec("0.455")},
		{ProductID: 2, Quantity: dec("1"), UnitCost: dec("10")},
	}}
	p.Recalculate()
	assert.True(t, p.Total.Equal(dec("15.46")), p.Total.String())

	p.Items = nil
	p.Recalculate()
	assert.True(t, p.Total.IsZero())
}

func TestCollectionTotalAndNet(t *testing.T) {
	c := Collection{Lines: []CollectionLine{{PaymentTypeID: 1, Amount: dec("5")}, {PaymentTypeID: 2, Amount: dec("4.50")}}}
	assert.True(t, c.Total().Equal(dec("9.50")))

	tx := ProductTransaction{Type: TxSale, QtyIn: decimal.Zero, QtyOut: dec("2")}
	assert.True(t, tx.Net().Equal(dec("-2")))
}
