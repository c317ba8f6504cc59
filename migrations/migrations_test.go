package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListIsOrderedAndChecksummed(t *testing.T) {
	migs, err := List()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(migs), 2)

	assert.Equal(t, "001", migs[0].Version)
	assert.Equal(t, "001_schema.sql", migs[0].Filename)
	for i := 1; i < len(migs); i++ {
		assert.Less(t, migs[i-1].Filename, migs[i].Filename)
	}
	for _, m := range migs {
		assert.Len(t, m.Checksum, 64)
		assert.NotEmpty(t, m.SQL)
	}
}

func TestSchemaDefinesReportTables(t *testing.T) {
	migs, err := List()
	require.NoError(t, err)
	for _, table := range []string{"sales", "sale_items", "stock_balances", "product_transactions", "collection_lines", "stock_documents"} {
		assert.Contains(t, migs[0].SQL, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
