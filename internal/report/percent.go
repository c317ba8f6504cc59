package report

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Percentage returns part/total*100 rounded to two places, or zero when
// total is zero.
func Percentage(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred).Round(2)
}
