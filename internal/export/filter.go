// Package export filters the local bookmark mirror and writes it out as
// JSON, CSV or XLSX.
package export

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/bookmark-cli/internal/model"
)

// AllCategories selects every category.
const AllCategories = "All"

// Filter narrows a record list. Zero values match everything.
type Filter struct {
	Category string
	Query    string
}

// DisplayCategory is the category a record is listed under.
func DisplayCategory(r model.Record) string {
	if r.Category == "" {
		return model.CategoryUncategorized
	}
	return r.Category
}

// Match reports whether r passes the filter. The query matches text,
// author name or handle, ignoring case.
func (f Filter) Match(r model.Record) bool {
	if f.Category != "" && f.Category != AllCategories && DisplayCategory(r) != f.Category {
		return false
	}
	if f.Query == "" {
		return true
	}
	fold := cases.Fold()
	q := fold.String(f.Query)
	for _, field := range []string{r.Text, r.AuthorName, r.AuthorHandle} {
		if strings.Contains(fold.String(field), q) {
			return true
		}
	}
	return false
}

// Apply returns the records matching f, preserving order.
func (f Filter) Apply(records []model.Record) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Categories lists the distinct display categories, sorted. Uncategorized
// is always present.
func Categories(records []model.Record) []string {
	set := map[string]struct{}{model.CategoryUncategorized: {}}
	for _, r := range records {
		set[DisplayCategory(r)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
