package reportfilter

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/odyssey-erp/storeops/internal/catalog"
	"github.com/odyssey-erp/storeops/internal/reportquery"
	"github.com/odyssey-erp/storeops/internal/shared"
)

// CustomInput is the JSON body of a custom report request.
type CustomInput struct {
	Columns    []string `json:"columns" validate:"max=9"`
	GroupBy    []string `json:"group_by" validate:"max=3"`
	Aggregates []string `json:"aggregates" validate:"max=6"`
	StoreID    *int64   `json:"store_id" validate:"omitempty,gte=1"`
	CategoryID *int64   `json:"category_id" validate:"omitempty,gte=1"`
	ProductID  *int64   `json:"product_id" validate:"omitempty,gte=1"`
	StartDate  string   `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string   `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	SortBy     string   `json:"sort_by"`
	Desc       bool     `json:"desc"`
	Limit      int      `json:"limit" validate:"gte=0"`
}

// CustomFilter is a validated custom report request.
type CustomFilter struct {
	Columns    []reportquery.Column    `json:"columns,omitempty"`
	GroupBy    []reportquery.GroupBy   `json:"group_by,omitempty"`
	Aggregates []reportquery.Aggregate `json:"aggregates,omitempty"`
	StoreID    *int64                  `json:"store_id,omitempty"`
	CategoryID *int64                  `json:"category_id,omitempty"`
	ProductID  *int64                  `json:"product_id,omitempty"`
	StartDate  string                  `json:"start_date"`
	EndDate    string                  `json:"end_date"`
	SortBy     string                  `json:"sort_by,omitempty"`
	Desc       bool                    `json:"desc,omitempty"`
	Limit      int                     `json:"limit"`

	Spec reportquery.CustomSpec `json:"-"`
}

// Key identifies f for caching.
func (f CustomFilter) Key() string {
	q := url.Values{}
	for _, c := range f.Columns {
		q.Add("column", string(c))
	}
	for _, g := range f.GroupBy {
		q.Add("group_by", string(g))
	}
	for _, a := range f.Aggregates {
		q.Add("aggregate", string(a))
	}
	for k, v := range map[string]*int64{"store_id": f.StoreID, "category_id": f.CategoryID, "product_id": f.ProductID} {
		if v != nil {
			q.Set(k, strconv.FormatInt(*v, 10))
		}
	}
	q.Set("start_date", f.StartDate)
	q.Set("end_date", f.EndDate)
	if f.SortBy != "" {
		q.Set("sort_by", f.SortBy)
	}
	if f.Desc {
		q.Set("desc", "true")
	}
	q.Set("limit", strconv.Itoa(f.Limit))
	return "custom?" + q.Encode()
}

// ValidateCustom parses every selection against the closed enumerations
// in reportquery and checks the referenced ids.
func (v *Validator) ValidateCustom(ctx context.Context, in CustomInput) (CustomFilter, error) {
	ve := shared.NewValidationError()
	v.structErrors(in, ve)

	var spec reportquery.CustomSpec
	for _, raw := range in.Columns {
		c, err := reportquery.ParseColumn(raw)
		if err != nil {
			ve.Add("columns", "unknown column "+strconv.Quote(raw))
			continue
		}
		spec.Columns = append(spec.Columns, c)
	}
	for _, raw := range in.GroupBy {
		g, err := reportquery.ParseGroupBy(raw)
		if err != nil {
			ve.Add("group_by", "unknown grouping "+strconv.Quote(raw))
			continue
		}
		spec.GroupBy = append(spec.GroupBy, g)
	}
	for _, raw := range in.Aggregates {
		a, err := reportquery.ParseAggregate(raw)
		if err != nil {
			ve.Add("aggregates", "unknown aggregate "+strconv.Quote(raw))
			continue
		}
		spec.Aggregates = append(spec.Aggregates, a)
	}
	spec.SortBy = strings.ToLower(strings.TrimSpace(in.SortBy))
	spec.Desc = in.Desc
	spec.Limit = in.Limit

	start, end := v.dates(in.StartDate, in.EndDate, ve)
	refs := map[catalog.Kind]*int64{
		catalog.KindStore:    in.StoreID,
		catalog.KindCategory: in.CategoryID,
		catalog.KindProduct:  in.ProductID,
	}
	for _, kind := range []catalog.Kind{catalog.KindStore, catalog.KindCategory, catalog.KindProduct} {
		if err := v.checkRef(ctx, kind, refs[kind], ve); err != nil {
			return CustomFilter{}, err
		}
	}
	if !ve.Empty() {
		return CustomFilter{}, ve
	}

	from, to := v.defaults.dateRange(start, end)
	spec.Filter = reportquery.SalesFilter{
		Range:      reportquery.Range{From: from, To: to.AddDate(0, 0, 1)},
		StoreID:    in.StoreID,
		CategoryID: in.CategoryID,
		ProductID:  in.ProductID,
	}
	if _, err := reportquery.BuildCustom(spec); err != nil {
		ve.Add(customField(err), strings.TrimPrefix(err.Error(), "reportquery: "))
		return CustomFilter{}, ve
	}
	return CustomFilter{
		Columns:    spec.Columns,
		GroupBy:    spec.GroupBy,
		Aggregates: spec.Aggregates,
		StoreID:    in.StoreID,
		CategoryID: in.CategoryID,
		ProductID:  in.ProductID,
		StartDate:  from.Format(dateLayout),
		EndDate:    to.Format(dateLayout),
		SortBy:     spec.SortBy,
		Desc:       spec.Desc,
		Limit:      spec.EffectiveLimit(),
		Spec:       spec,
	}, nil
}

func customField(err error) string {
	switch {
	case errors.Is(err, reportquery.ErrTooManyGroups):
		return "group_by"
	case errors.Is(err, reportquery.ErrUnknownSort):
		return "sort_by"
	case errors.Is(err, reportquery.ErrGrainConflict):
		return "aggregates"
	}
	return "columns"
}
