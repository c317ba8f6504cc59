// Package reportfilter turns raw report parameters into validated,
// normalized filters. Nothing here touches report SQL: a Filter that leaves
// this package is safe to hand to reportquery.
package reportfilter

import (
	"net/url"
	"strconv"
	"strings"
)

// Report names a report whose parameters this package validates.
type Report string

const (
	ReportSales       Report = "sales"
	ReportSlowMoving  Report = "slow-moving"
	ReportReorder     Report = "reorder"
	ReportValuation   Report = "stock-valuation"
	ReportMovements   Report = "stock-movements"
	ReportPurchases   Report = "purchases"
	ReportCollections Report = "collections"
)

// Reports lists every filterable report.
var Reports = []Report{
	ReportSales, ReportSlowMoving, ReportReorder, ReportValuation,
	ReportMovements, ReportPurchases, ReportCollections,
}

// ParseReport validates a report name taken from a URL.
func ParseReport(s string) (Report, bool) {
	for _, r := range Reports {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Input holds raw report parameters. Fields not used by a report are
// ignored for that report.
type Input struct {
	StoreID     *int64 `query:"store_id" validate:"omitempty,gte=1"`
	CategoryID  *int64 `query:"category_id" validate:"omitempty,gte=1"`
	ProductID   *int64 `query:"product_id" validate:"omitempty,gte=1"`
	SupplierID  *int64 `query:"supplier_id" validate:"omitempty,gte=1"`
	StartDate   string `query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string `query:"end_date" validate:"omitempty,datetime=2006-01-02"`
	GroupBy     string `query:"group_by" validate:"omitempty,oneof=day week month product category store"`
	Days        *int   `query:"days" validate:"omitempty,gte=1,lte=3650"`
	MaxSalesQty *int   `query:"max_sales_qty" validate:"omitempty,gte=0"`
	Stage       string `query:"stage" validate:"omitempty,oneof=draft checked approved cancelled open committed"`
	Type        string `query:"type" validate:"omitempty,oneof=SALE PURCHASE ADJUSTMENT PHYSICAL_COUNT TRANSFER_IN TRANSFER_OUT"`
	Page        *int   `query:"page" validate:"omitempty,gte=1,lte=100000"`
	IncludeOK   bool   `query:"include_ok"`

	// parseErrs holds values that could not be converted at all.
	parseErrs map[string]string
}

// FromQuery reads an Input from URL query values. Blank values count as
// absent. Values that do not parse are recorded and reported by Validate.
func FromQuery(q url.Values) Input {
	in := Input{
		StartDate: strings.TrimSpace(q.Get("start_date")),
		EndDate:   strings.TrimSpace(q.Get("end_date")),
		GroupBy:   strings.ToLower(strings.TrimSpace(q.Get("group_by"))),
		Stage:     strings.ToLower(strings.TrimSpace(q.Get("stage"))),
		Type:      strings.ToUpper(strings.TrimSpace(q.Get("type"))),
	}
	in.StoreID = in.parseID(q, "store_id")
	in.CategoryID = in.parseID(q, "category_id")
	in.ProductID = in.parseID(q, "product_id")
	in.SupplierID = in.parseID(q, "supplier_id")
	in.Days = in.parseInt(q, "days")
	in.MaxSalesQty = in.parseInt(q, "max_sales_qty")
	in.Page = in.parseInt(q, "page")
	if raw := strings.TrimSpace(q.Get("include_ok")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			in.fail("include_ok", "must be true or false")
		}
		in.IncludeOK = v
	}
	return in
}

func (in *Input) fail(field, msg string) {
	if in.parseErrs == nil {
		in.parseErrs = map[string]string{}
	}
	in.parseErrs[field] = msg
}

func (in *Input) parseID(q url.Values, field string) *int64 {
	raw := strings.TrimSpace(q.Get(field))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		in.fail(field, "must be a whole number")
		return nil
	}
	return &v
}

func (in *Input) parseInt(q url.Values, field string) *int {
	raw := strings.TrimSpace(q.Get(field))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		in.fail(field, "must be a whole number")
		return nil
	}
	return &v
}
