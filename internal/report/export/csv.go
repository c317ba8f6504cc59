// Package export renders report tables as downloadable files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/odyssey-erp/storeops/internal/report"
)

// WriteCSV writes the table header and rows. Numeric columns are printed
// with the digit grouping of tag; other cells are written as-is.
func WriteCSV(w io.Writer, t report.Table, tag language.Tag) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(t.Header); err != nil {
		return err
	}
	p := message.NewPrinter(tag)
	for _, row := range t.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			if i < len(t.Numeric) && t.Numeric[i] {
				record[i] = formatNumber(p, cell)
				continue
			}
			record[i] = cell
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// formatNumber keeps the scale of the stored value. Cells that are not
// numbers pass through unchanged.
func formatNumber(p *message.Printer, cell string) string {
	v, err := decimal.NewFromString(cell)
	if err != nil {
		return cell
	}
	scale := 0
	if exp := v.Exponent(); exp < 0 {
		scale = int(-exp)
	}
	return p.Sprint(number.Decimal(v.InexactFloat64(), number.Scale(scale)))
}

// Filename builds a unique download name such as
// "sales-20240315-1a2b3c4d.csv".
func Filename(name string, now time.Time) string {
	id := uuid.New().String()
	return fmt.Sprintf("%s-%s-%s.csv", name, now.Format("20060102"), id[:8])
}
