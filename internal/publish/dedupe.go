// Package publish writes the final deduplicated opportunity set as CSV and
// GeoJSON and stages the GeoJSON for the web map.
package publish

import (
	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

// Dedupe keeps one opportunity per (agency, project_id): the most recently
// checked, then the most confident, then the first seen. The result is
// sorted by key.
func Dedupe(opps []*opportunity.Opportunity) []*opportunity.Opportunity {
	best := make(map[string]int, len(opps))
	var out []*opportunity.Opportunity

	for _, o := range opps {
		key := o.Key()
		i, ok := best[key]
		if !ok {
			best[key] = len(out)
			out = append(out, o)
			continue
		}
		if preferred(o, out[i]) {
			out[i] = o
		}
	}

	opportunity.SortByKey(out)
	return out
}

// preferred reports whether candidate should replace current
func preferred(candidate, current *opportunity.Opportunity) bool {
	if !candidate.LastChecked.Equal(current.LastChecked) {
		return candidate.LastChecked.After(current.LastChecked)
	}
	return candidate.Confidence > current.Confidence
}
