package reportfilter

import (
	"net/url"
	"strconv"
	"time"

	"github.com/odyssey-erp/storeops/internal/reportquery"
	"github.com/odyssey-erp/storeops/internal/shared"
)

const dateLayout = "2006-01-02"

// Filter is a validated, defaulted parameter set for one report. It is
// echoed back to clients so filter forms can be repopulated.
type Filter struct {
	Report      Report              `json:"report"`
	StoreID     *int64              `json:"store_id,omitempty"`
	CategoryID  *int64              `json:"category_id,omitempty"`
	ProductID   *int64              `json:"product_id,omitempty"`
	SupplierID  *int64              `json:"supplier_id,omitempty"`
	StartDate   string              `json:"start_date,omitempty"`
	EndDate     string              `json:"end_date,omitempty"`
	GroupBy     reportquery.GroupBy `json:"group_by,omitempty"`
	Days        int                 `json:"days,omitempty"`
	MaxSalesQty *int                `json:"max_sales_qty,omitempty"`
	Stage       string              `json:"stage,omitempty"`
	Type        string              `json:"type,omitempty"`
	Page        int                 `json:"page,omitempty"`
	IncludeOK   bool                `json:"include_ok,omitempty"`

	// Window is the half-open time range the report covers, derived from
	// the dates or from Days.
	Window reportquery.Range `json:"-"`
}

// Values renders f as canonical query parameters.
func (f Filter) Values() url.Values {
	q := url.Values{}
	setID := func(k string, v *int64) {
		if v != nil {
			q.Set(k, strconv.FormatInt(*v, 10))
		}
	}
	setID("store_id", f.StoreID)
	setID("category_id", f.CategoryID)
	setID("product_id", f.ProductID)
	setID("supplier_id", f.SupplierID)
	if f.StartDate != "" {
		q.Set("start_date", f.StartDate)
	}
	if f.EndDate != "" {
		q.Set("end_date", f.EndDate)
	}
	if f.GroupBy != "" {
		q.Set("group_by", string(f.GroupBy))
	}
	if f.Days > 0 {
		q.Set("days", strconv.Itoa(f.Days))
	}
	if f.MaxSalesQty != nil {
		q.Set("max_sales_qty", strconv.Itoa(*f.MaxSalesQty))
	}
	if f.Stage != "" {
		q.Set("stage", f.Stage)
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.IncludeOK {
		q.Set("include_ok", "true")
	}
	return q
}

// Key identifies f for caching. Equal filters always produce equal keys.
func (f Filter) Key() string {
	return string(f.Report) + "?" + f.Values().Encode()
}

// Stages expands the stage parameter. "open" means not yet terminal and
// "committed" means approved.
func (f Filter) Stages() []string {
	switch f.Stage {
	case "":
		return nil
	case "open":
		return stageNames(shared.OpenStages)
	case "committed":
		return []string{string(shared.StageApproved)}
	}
	return []string{f.Stage}
}

func stageNames(stages []shared.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}

// SalesFilter converts f for sales statements.
func (f Filter) SalesFilter() reportquery.SalesFilter {
	return reportquery.SalesFilter{
		Range:      f.Window,
		StoreID:    f.StoreID,
		CategoryID: f.CategoryID,
		ProductID:  f.ProductID,
	}
}

// StockFilter converts f for stock balance statements.
func (f Filter) StockFilter() reportquery.StockFilter {
	return reportquery.StockFilter{StoreID: f.StoreID, CategoryID: f.CategoryID}
}

// SlowMovingFilter converts f for the slow-moving statement.
func (f Filter) SlowMovingFilter() reportquery.SlowMovingFilter {
	var maxQty int64
	if f.MaxSalesQty != nil {
		maxQty = int64(*f.MaxSalesQty)
	}
	return reportquery.SlowMovingFilter{StockFilter: f.StockFilter(), Window: f.Window, MaxQty: maxQty}
}

// ReorderFilter converts f for the reorder statement.
func (f Filter) ReorderFilter() reportquery.ReorderFilter {
	return reportquery.ReorderFilter{StockFilter: f.StockFilter(), IncludeOK: f.IncludeOK}
}

// MovementFilter converts f for movement history statements.
func (f Filter) MovementFilter() reportquery.MovementFilter {
	return reportquery.MovementFilter{Range: f.Window, StoreID: f.StoreID, ProductID: f.ProductID, Type: f.Type}
}

// PurchaseFilter converts f for purchase history statements.
func (f Filter) PurchaseFilter() reportquery.PurchaseFilter {
	return reportquery.PurchaseFilter{Range: f.Window, SupplierID: f.SupplierID, StoreID: f.StoreID, Stages: f.Stages()}
}

// CollectionFilter converts f for collection statements.
func (f Filter) CollectionFilter() reportquery.CollectionFilter {
	return reportquery.CollectionFilter{Range: f.Window, StoreID: f.StoreID}
}

// Defaults supplies values for omitted parameters.
type Defaults struct {
	// Window is "month" (first of the month to today) or "30d".
	Window         string
	SlowMovingDays int
	// SlowMovingMaxQty is the sold-quantity ceiling for slow movers. Nil
	// means 5; zero keeps only products that did not sell at all.
	SlowMovingMaxQty *int
	Now              func() time.Time
	Location         *time.Location
}

func (d Defaults) today() time.Time {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	y, m, day := now().In(loc).Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

func (d Defaults) location() *time.Location {
	if d.Location == nil {
		return time.Local
	}
	return d.Location
}

// windowStart is the default first day of a window ending on end.
func (d Defaults) windowStart(end time.Time) time.Time {
	if d.Window == "30d" {
		return end.AddDate(0, 0, -29)
	}
	return time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
}

func (d Defaults) slowMovingDays() int {
	if d.SlowMovingDays > 0 {
		return d.SlowMovingDays
	}
	return 90
}

func (d Defaults) slowMovingMaxQty() int {
	if d.SlowMovingMaxQty != nil && *d.SlowMovingMaxQty >= 0 {
		return *d.SlowMovingMaxQty
	}
	return 5
}

// dateRange resolves start and end days (inclusive). Missing ends come from
// the defaults; a start in the future pulls the end along with it.
func (d Defaults) dateRange(start, end *time.Time) (time.Time, time.Time) {
	switch {
	case start != nil && end != nil:
		return *start, *end
	case start != nil:
		e := d.today()
		if e.Before(*start) {
			e = *start
		}
		return *start, e
	case end != nil:
		return d.windowStart(*end), *end
	}
	e := d.today()
	return d.windowStart(e), e
}
