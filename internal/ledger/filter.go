// Package ledger implements the pure transformations behind every report:
// date and status filtering, per-card aggregation, top-N selection, the
// category window, and keyword search.
//
// Nothing here performs I/O. Every function returns a new slice and leaves
// its input untouched.
package ledger

import (
	"fmt"
	"strings"

	"finreport/internal/core"
)

// DefaultStatus is the status kept by the dashboard.
const DefaultStatus = core.StatusOK

// FilterByDateRange keeps records whose payment date falls in [start, end],
// both given as DD.MM.YYYY.
//
// A blank or "nan" payment date means the record has no date and it is
// skipped. Any other value must parse strictly; a value that does not is
// reported as a *core.RecordDateError and no partial result is returned.
func FilterByDateRange(records []core.Record, start, end string) ([]core.Record, error) {
	from, err := core.ParseDisplayDate(start)
	if err != nil {
		return nil, fmt.Errorf("start bound: %w", err)
	}
	to, err := core.ParseDisplayDate(end)
	if err != nil {
		return nil, fmt.Errorf("end bound: %w", err)
	}

	out := make([]core.Record, 0, len(records))
	for i, r := range records {
		if isMissingDate(r.PaymentDate) {
			continue
		}
		d, err := core.ParseDisplayDate(r.PaymentDate)
		if err != nil {
			return nil, &core.RecordDateError{Index: i, Value: r.PaymentDate}
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// FilterByStatus keeps records whose status equals status exactly.
// An empty input is rejected with core.ErrEmptyInput.
func FilterByStatus(records []core.Record, status string) ([]core.Record, error) {
	if len(records) == 0 {
		return nil, core.ErrEmptyInput
	}
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func isMissingDate(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "" || v == "nan"
}
