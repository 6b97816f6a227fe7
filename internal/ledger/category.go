package ledger

import (
	"sort"
	"time"

	"finreport/internal/core"
)

// CategoryWindowMonths is the length of the spending-by-category window.
const CategoryWindowMonths = 3

// SpendingByCategory returns the records of one category paid in the three
// calendar months ending at ref. A blank category matches nothing.
func SpendingByCategory(records []core.Record, category string, ref time.Time) ([]core.Record, error) {
	start, end := core.LastMonths(ref, CategoryWindowMonths).DisplayBounds()
	inWindow, err := FilterByDateRange(records, start, end)
	if err != nil {
		return nil, err
	}

	out := make([]core.Record, 0)
	if category == "" {
		return out, nil
	}
	for _, r := range inWindow {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out, nil
}

// CategoryTotals sums amounts per category, ordered by category name.
func CategoryTotals(records []core.Record) []core.CategoryAmount {
	sums := map[string]core.Money{}
	for _, r := range records {
		sums[r.Category] = sums[r.Category].Add(r.Amount)
	}
	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]core.CategoryAmount, 0, len(names))
	for _, name := range names {
		out = append(out, core.CategoryAmount{Category: name, Total: sums[name]})
	}
	return out
}
