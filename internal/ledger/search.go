package ledger

import (
	"strings"

	"finreport/internal/core"
)

// missingField is what an absent description or category is matched as.
const missingField = "None"

// Search returns the records whose description or category contains query,
// ignoring case. Order is preserved.
func Search(records []core.Record, query string) []core.Record {
	needle := strings.ToLower(query)
	out := make([]core.Record, 0)
	for _, r := range records {
		if strings.Contains(searchable(r.Description), needle) ||
			strings.Contains(searchable(r.Category), needle) {
			out = append(out, r)
		}
	}
	return out
}

func searchable(v string) string {
	if v == "" {
		v = missingField
	}
	return strings.ToLower(v)
}
