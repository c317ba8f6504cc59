package reportquery

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// GroupBy is the closed set of report grouping keys.
type GroupBy string

const (
	GroupDay      GroupBy = "day"
	GroupWeek     GroupBy = "week"
	GroupMonth    GroupBy = "month"
	GroupProduct  GroupBy = "product"
	GroupCategory GroupBy = "category"
	GroupStore    GroupBy = "store"
)

// ErrUnknownGroupBy is returned for a grouping key outside the allow-list.
var ErrUnknownGroupBy = errors.New("reportquery: unknown group by")

// SalesGroupings are the groupings accepted by the sales summary.
var SalesGroupings = []GroupBy{GroupDay, GroupWeek, GroupMonth, GroupProduct, GroupCategory, GroupStore}

// ValuationGroupings are the groupings accepted by the stock valuation.
var ValuationGroupings = []GroupBy{GroupProduct, GroupCategory, GroupStore}

const dateLayout = "2006-01-02"

// GroupSpec maps one GroupBy to concrete SQL and a label rule.
type GroupSpec struct {
	By GroupBy
	// Key yields a text key. Chronological keys are ISO dates, so they sort
	// as text.
	Key string
	// Label yields the display label; empty means the label is derived
	// from the key.
	Label         string
	Columns       []string
	Requires      []Table
	Chronological bool
}

var salesGroupSpecs = map[GroupBy]GroupSpec{
	GroupDay: {
		By:            GroupDay,
		Key:           "to_char(date_trunc('day', s.sold_at), 'YYYY-MM-DD')",
		Columns:       []string{"date_trunc('day', s.sold_at)"},
		Chronological: true,
	},
	GroupWeek: {
		By:            GroupWeek,
		Key:           "to_char(date_trunc('week', s.sold_at), 'YYYY-MM-DD')",
		Columns:       []string{"date_trunc('week', s.sold_at)"},
		Chronological: true,
	},
	GroupMonth: {
		By:            GroupMonth,
		Key:           "to_char(date_trunc('month', s.sold_at), 'YYYY-MM-DD')",
		Columns:       []string{"date_trunc('month', s.sold_at)"},
		Chronological: true,
	},
	GroupProduct: {
		By:       GroupProduct,
		Key:      "p.id::text",
		Label:    "p.name",
		Columns:  []string{"p.id", "p.name"},
		Requires: []Table{TableProducts},
	},
	GroupCategory: {
		By:       GroupCategory,
		Key:      "COALESCE(c.id, 0)::text",
		Label:    "COALESCE(c.name, 'Uncategorized')",
		Columns:  []string{"c.id", "c.name"},
		Requires: []Table{TableCategories},
	},
	GroupStore: {
		By:       GroupStore,
		Key:      "st.id::text",
		Label:    "st.name",
		Columns:  []string{"st.id", "st.name"},
		Requires: []Table{TableStores},
	},
}

var stockGroupSpecs = map[GroupBy]GroupSpec{
	GroupProduct:  salesGroupSpecs[GroupProduct],
	GroupCategory: salesGroupSpecs[GroupCategory],
	GroupStore:    salesGroupSpecs[GroupStore],
}

// ParseGroupBy validates s against the full allow-list.
func ParseGroupBy(s string) (GroupBy, error) {
	g := GroupBy(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := salesGroupSpecs[g]; ok {
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGroupBy, s)
}

// In reports whether g is one of allowed.
func (g GroupBy) In(allowed []GroupBy) bool {
	for _, a := range allowed {
		if a == g {
			return true
		}
	}
	return false
}

// Chronological reports whether g buckets by time.
func (g GroupBy) Chronological() bool {
	return g == GroupDay || g == GroupWeek || g == GroupMonth
}

// SalesGroupSpec returns the sales grouping for g.
func SalesGroupSpec(g GroupBy) (GroupSpec, error) {
	spec, ok := salesGroupSpecs[g]
	if !ok {
		return GroupSpec{}, fmt.Errorf("%w: %q", ErrUnknownGroupBy, g)
	}
	return spec, nil
}

// FormatLabel renders the display label for a result row. raw is the value
// of the Label expression and is ignored for chronological groupings.
func (g GroupSpec) FormatLabel(key, raw string) string {
	return FormatLabel(g.By, key, raw)
}

// FormatLabel renders a label for grouping g: "2024-03-05" for days,
// "Week of 2024-03-04" for weeks, "Mar 2024" for months, the entity name
// otherwise.
func FormatLabel(g GroupBy, key, raw string) string {
	switch g {
	case GroupDay:
		return key
	case GroupWeek:
		return "Week of " + key
	case GroupMonth:
		t, err := time.Parse(dateLayout, key)
		if err != nil {
			return key
		}
		return t.Format("Jan 2006")
	}
	if raw == "" {
		return key
	}
	return raw
}

// PeriodStart truncates t to the start of the bucket g, matching
// PostgreSQL's date_trunc (ISO weeks start on Monday).
func PeriodStart(g GroupBy, t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch g {
	case GroupWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GroupMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
	return day
}
