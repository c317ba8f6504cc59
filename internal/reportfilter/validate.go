package reportfilter

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/storeops/internal/catalog"
	"github.com/odyssey-erp/storeops/internal/reportquery"
	"github.com/odyssey-erp/storeops/internal/shared"
)

// Lookup answers existence checks for referenced records.
type Lookup interface {
	Exists(ctx context.Context, kind catalog.Kind, id int64) (bool, error)
}

type rule struct {
	refs         []catalog.Kind
	dated        bool
	paged        bool
	groupings    []reportquery.GroupBy
	defaultGroup reportquery.GroupBy
}

var rules = map[Report]rule{
	ReportSales: {
		refs:         []catalog.Kind{catalog.KindStore, catalog.KindCategory, catalog.KindProduct},
		dated:        true,
		groupings:    reportquery.SalesGroupings,
		defaultGroup: reportquery.GroupDay,
	},
	ReportSlowMoving: {refs: []catalog.Kind{catalog.KindStore, catalog.KindCategory}},
	ReportReorder:    {refs: []catalog.Kind{catalog.KindStore, catalog.KindCategory}},
	ReportValuation: {
		refs:         []catalog.Kind{catalog.KindStore, catalog.KindCategory},
		groupings:    reportquery.ValuationGroupings,
		defaultGroup: reportquery.GroupCategory,
	},
	ReportMovements:   {refs: []catalog.Kind{catalog.KindStore, catalog.KindProduct}, dated: true, paged: true},
	ReportPurchases:   {refs: []catalog.Kind{catalog.KindSupplier, catalog.KindStore}, dated: true, paged: true},
	ReportCollections: {refs: []catalog.Kind{catalog.KindStore}, dated: true},
}

// ErrUnknownReport is returned for a report name without validation rules.
var ErrUnknownReport = errors.New("reportfilter: unknown report")

// Validator validates inputs and fills in defaults.
type Validator struct {
	lookup   Lookup
	defaults Defaults
	validate *validator.Validate
}

// NewValidator constructs a Validator.
func NewValidator(lookup Lookup, defaults Defaults) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(fieldName)
	return &Validator{lookup: lookup, defaults: defaults, validate: v}
}

// fieldName reports validation failures under their wire names.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"query", "json"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// Validate checks in against the rules of report and returns the
// normalized filter. Field failures are returned together as a
// *shared.ValidationError; any other error comes from the lookup.
func (v *Validator) Validate(ctx context.Context, report Report, in Input) (Filter, error) {
	r, ok := rules[report]
	if !ok {
		return Filter{}, fmt.Errorf("%w: %q", ErrUnknownReport, report)
	}
	ve := shared.NewValidationError()
	for field, msg := range in.parseErrs {
		ve.Add(field, msg)
	}
	v.structErrors(in, ve)

	group := reportquery.GroupBy(in.GroupBy)
	if in.GroupBy != "" && !ve.Has("group_by") {
		if len(r.groupings) == 0 {
			group = ""
		} else if !group.In(r.groupings) {
			ve.Add("group_by", "must be one of: "+joinGroupings(r.groupings))
		}
	}

	var start, end *time.Time
	if r.dated {
		start, end = v.dates(in.StartDate, in.EndDate, ve)
	}

	ids := map[catalog.Kind]*int64{
		catalog.KindStore:    in.StoreID,
		catalog.KindCategory: in.CategoryID,
		catalog.KindProduct:  in.ProductID,
		catalog.KindSupplier: in.SupplierID,
	}
	for _, kind := range r.refs {
		if err := v.checkRef(ctx, kind, ids[kind], ve); err != nil {
			return Filter{}, err
		}
	}
	if err := ve.Err(); err != nil {
		return Filter{}, err
	}

	f := Filter{Report: report}
	for _, kind := range r.refs {
		switch kind {
		case catalog.KindStore:
			f.StoreID = in.StoreID
		case catalog.KindCategory:
			f.CategoryID = in.CategoryID
		case catalog.KindProduct:
			f.ProductID = in.ProductID
		case catalog.KindSupplier:
			f.SupplierID = in.SupplierID
		}
	}
	if len(r.groupings) > 0 {
		f.GroupBy = r.defaultGroup
		if group != "" {
			f.GroupBy = group
		}
	}
	if r.dated {
		from, to := v.defaults.dateRange(start, end)
		f.StartDate = from.Format(dateLayout)
		f.EndDate = to.Format(dateLayout)
		f.Window = reportquery.Range{From: from, To: to.AddDate(0, 0, 1)}
	}
	if r.paged {
		f.Page = 1
		if in.Page != nil {
			f.Page = *in.Page
		}
	}
	switch report {
	case ReportSlowMoving:
		f.Days = v.defaults.slowMovingDays()
		if in.Days != nil {
			f.Days = *in.Days
		}
		maxQty := v.defaults.slowMovingMaxQty()
		if in.MaxSalesQty != nil {
			maxQty = *in.MaxSalesQty
		}
		f.MaxSalesQty = &maxQty
		to := v.defaults.today().AddDate(0, 0, 1)
		f.Window = reportquery.Range{From: to.AddDate(0, 0, -f.Days), To: to}
	case ReportReorder:
		f.IncludeOK = in.IncludeOK
	case ReportMovements:
		f.Type = in.Type
	case ReportPurchases:
		f.Stage = in.Stage
	}
	return f, nil
}

func (v *Validator) structErrors(in any, ve *shared.ValidationError) {
	err := v.validate.Struct(in)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		ve.Add("general", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		ve.Add(fe.Field(), message(fe))
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must have at most " + fe.Param() + " entries"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "is invalid"
}

// dates parses both dates and checks their order. Fields that already
// failed are skipped.
func (v *Validator) dates(rawStart, rawEnd string, ve *shared.ValidationError) (*time.Time, *time.Time) {
	parse := func(field, raw string) *time.Time {
		if raw == "" || ve.Has(field) {
			return nil
		}
		t, err := time.ParseInLocation(dateLayout, raw, v.defaults.location())
		if err != nil {
			ve.Add(field, "must be a date in YYYY-MM-DD format")
			return nil
		}
		return &t
	}
	start := parse("start_date", rawStart)
	end := parse("end_date", rawEnd)
	if start != nil && end != nil && end.Before(*start) {
		ve.Add("end_date", "must be on or after the start date")
	}
	return start, end
}

func (v *Validator) checkRef(ctx context.Context, kind catalog.Kind, id *int64, ve *shared.ValidationError) error {
	field := string(kind) + "_id"
	if id == nil || ve.Has(field) {
		return nil
	}
	ok, err := v.lookup.Exists(ctx, kind, *id)
	if err != nil {
		return fmt.Errorf("check %s %d: %w", kind, *id, err)
	}
	if !ok {
		ve.Add(field, "selected "+strings.ReplaceAll(string(kind), "_", " ")+" does not exist")
	}
	return nil
}

func joinGroupings(gs []reportquery.GroupBy) string {
	parts := make([]string, len(gs))
	for i, g := range gs {
		parts[i] = string(g)
	}
	return strings.Join(parts, ", ")
}
