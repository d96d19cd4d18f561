package echoapi

import (
	"strings"

	"github.com/trezcool/temario/core"
)

const orderingParam = "ordering"

// parseOrdering reads an `ordering` query value, eg. `status,-created_at`.
// A leading "-" sorts descending; repositories drop fields they don't know.
func parseOrdering(raw string) []core.DBOrdering {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	fields := strings.Split(raw, ",")
	orderings := make([]core.DBOrdering, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		desc := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if field == "" {
			continue
		}
		orderings = append(orderings, core.DBOrdering{Field: field, Ascending: !desc})
	}
	return orderings
}
