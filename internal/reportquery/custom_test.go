package reportquery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomSpecValidate(t *testing.T) {
	cases := []struct {
		name string
		spec CustomSpec
		err  error
	}{
		{"empty", CustomSpec{}, ErrEmptySpec},
		{"mixed", CustomSpec{Columns: []Column{ColStore}, Aggregates: []Aggregate{AggQuantity}}, ErrMixedSpec},
		{"columns with group", CustomSpec{Columns: []Column{ColStore}, GroupBy: []GroupBy{GroupDay}}, ErrMixedSpec},
		{"unknown column", CustomSpec{Columns: []Column{"password"}}, ErrUnknownColumn},
		{"duplicate", CustomSpec{Aggregates: []Aggregate{AggQuantity, AggQuantity}}, ErrDuplicate},
		{"too many groups", CustomSpec{
			GroupBy:    []GroupBy{GroupDay, GroupStore, GroupProduct, GroupCategory},
			Aggregates: []Aggregate{AggQuantity},
		}, ErrTooManyGroups},
		{"sort not selected", CustomSpec{Aggregates: []Aggregate{AggQuantity}, SortBy: "sales_amount"}, ErrUnknownSort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.spec.Validate(), tc.err)
		})
	}
}

func TestCustomEffectiveLimit(t *testing.T) {
	assert.Equal(t, DefaultCustomLimit, CustomSpec{}.EffectiveLimit())
	assert.Equal(t, 1, CustomSpec{Limit: 1}.EffectiveLimit())
	assert.Equal(t, MaxCustomLimit, CustomSpec{Limit: 10000}.EffectiveLimit())
}

func TestBuildCustomSummary(t *testing.T) {
	stmt, err := BuildCustom(CustomSpec{
		GroupBy:    []GroupBy{GroupMonth, GroupStore},
		Aggregates: []Aggregate{AggSalesAmount},
		Filter:     SalesFilter{Range: march()},
		SortBy:     "sales_amount",
		Desc:       true,
		Limit:      50,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"month_key", "month", "store_key", "store", "sales_amount"}, stmt.Columns)
	assert.Contains(t, stmt.SQL, "(COALESCE(SUM(si.quantity * si.price), 0))::text AS sales_amount")
	assert.Contains(t, stmt.SQL, "GROUP BY date_trunc('month', s.sold_at), st.id, st.name")
	assert.Contains(t, stmt.SQL, "ORDER BY COALESCE(SUM(si.quantity * si.price), 0) DESC, date_trunc('month', s.sold_at), st.id, st.name")
	assert.True(t, strings.HasSuffix(stmt.SQL, "LIMIT $3"))
	assert.Equal(t, []any{march().From, march().To, 51}, stmt.Args)
}

func TestBuildCustomDetailTiebreaksOnItems(t *testing.T) {
	stmt, err := BuildCustom(CustomSpec{
		Columns: []Column{ColSoldAt, ColProduct, ColSubtotal},
		SortBy:  "sold_at",
	})
	require.NoError(t, err)

	assert.Contains(t, stmt.SQL, "to_char(s.sold_at, 'YYYY-MM-DD HH24:MI') AS sold_at")
	assert.Contains(t, stmt.SQL, "ORDER BY s.sold_at ASC, s.id ASC, si.id ASC")
	assert.NotContains(t, stmt.SQL, "GROUP BY")
	assert.Equal(t, []any{DefaultCustomLimit + 1}, stmt.Args)
}

func TestBuildCustomDetailAtSaleGrain(t *testing.T) {
	stmt, err := BuildCustom(CustomSpec{Columns: []Column{ColSaleID, ColStore}})
	require.NoError(t, err)
	assert.NotContains(t, stmt.SQL, "sale_items")
	assert.Contains(t, stmt.SQL, "ORDER BY s.id ASC LIMIT")
}

func TestBuildCustomProductFilterJoinsItemsBeforeTiebreak(t *testing.T) {
	stmt, err := BuildCustom(CustomSpec{Columns: []Column{ColSaleID}, Filter: SalesFilter{ProductID: ptr(3)}})
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, "si.product_id = $1")
	assert.Contains(t, stmt.SQL, "ORDER BY s.id ASC, si.id ASC")
}

func TestBuildCustomGrainConflict(t *testing.T) {
	_, err := BuildCustom(CustomSpec{GroupBy: []GroupBy{GroupCategory}, Aggregates: []Aggregate{AggPaidAmount}})
	assert.ErrorIs(t, err, ErrGrainConflict)
}

func TestParseColumn(t *testing.T) {
	c, err := ParseColumn("SKU")
	require.NoError(t, err)
	assert.Equal(t, ColSKU, c)

	_, err = ParseColumn("s.id; DROP TABLE sales")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}
