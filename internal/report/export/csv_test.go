package export

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/storeops/internal/report"
)

func TestWriteCSVFormatsNumericColumns(t *testing.T) {
	rep := report.SalesReport{Rows: []report.SalesRow{{
		Label:        "Mar 2024",
		Quantity:     decimal.RequireFromString("1200"),
		SalesAmount:  decimal.RequireFromString("1234567.50"),
		Transactions: 3,
		Percentage:   decimal.RequireFromString("100"),
	}}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rep.Table(), language.English))

	assert.Equal(t, "Group,Quantity,Sales Amount,Transactions,Percentage\n"+
		"Mar 2024,\"1,200\",\"1,234,567.50\",3,100.00\n", buf.String())
}

func TestWriteCSVLeavesTextAlone(t *testing.T) {
	table := report.Table{
		Header:  []string{"Name", "Amount"},
		Numeric: []bool{false, true},
		Rows:    [][]string{{"1000", "n/a"}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table, language.English))
	assert.Equal(t, "Name,Amount\n1000,n/a\n", buf.String())
}

func TestWriteCSVEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, report.ReorderReport{}.Table(), language.English))
	assert.Equal(t, "Store,SKU,Product,Category,On Hand,Reorder Level,Shortfall,Status\n", buf.String())
}

func TestCustomTableMarksAggregates(t *testing.T) {
	table := report.CustomReport{Columns: []string{"store", "sales_amount", "sku", "price"}}.Table()
	assert.Equal(t, []bool{false, true, false, true}, table.Numeric)
}

func TestFilename(t *testing.T) {
	name := Filename("reorder", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^reorder-20240315-[0-9a-f]{8}\.csv$`), name)
	assert.NotEqual(t, name, Filename("reorder", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
}
