// Package enrich attaches ranger district centroids to USFS interim rows
package enrich

import (
	"strconv"
	"strings"

	"github.com/pfrederiksen/comment-map/internal/district"
	"github.com/pfrederiksen/comment-map/internal/interim"
	"github.com/pfrederiksen/comment-map/internal/logger"
	"github.com/pfrederiksen/comment-map/internal/metrics"
	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

const stage = "enrich"

// Stats counts how rows were located
type Stats struct {
	Rows      int
	Direct    int
	Matched   int
	Unmatched int
}

// Enrich locates every row of t. Rows that already carry coordinates keep
// them; others are matched by unit name against ix and get the centroid of
// the matched districts. Unmatched rows are kept with location_status unknown.
func Enrich(t *interim.Table, ix *district.Index) (*interim.Table, Stats) {
	out := &interim.Table{Header: t.WithColumns(interim.EnrichedColumns...)}
	stats := Stats{Rows: len(t.Rows)}

	for _, src := range t.Rows {
		row := src.Clone()

		if hasCoordinates(row) {
			if row["geom_source"] == "" || row["geom_source"] == string(opportunity.GeomNone) {
				row["geom_source"] = string(opportunity.GeomDirect)
			}
			row["location_status"] = string(opportunity.LocationOK)
			stats.Direct++
			out.Rows = append(out.Rows, row)
			continue
		}

		unit := row.Get("unit")
		m, err := match(ix, unit)
		if err != nil {
			logger.Warn("District not matched", logger.Fields{
				"project_id": row["project_id"],
				"unit":       unit,
			}, err)
			metrics.IncFailure(stage, "no_match")
			row["longitude"], row["latitude"] = "", ""
			row["geom_source"] = string(opportunity.GeomNone)
			row["location_status"] = string(opportunity.LocationUnknown)
			row["district"], row["matched_units"] = "", ""
			stats.Unmatched++
			out.Rows = append(out.Rows, row)
			continue
		}

		row["longitude"] = opportunity.FormatCoord(m.Centroid.X())
		row["latitude"] = opportunity.FormatCoord(m.Centroid.Y())
		row["geom_source"] = string(opportunity.GeomDerived)
		row["location_status"] = string(opportunity.LocationOK)
		row["district"] = strings.Join(m.Units, "; ")
		row["matched_units"] = strings.Join(m.Units, ";")
		stats.Matched++
		out.Rows = append(out.Rows, row)
	}

	metrics.AddRecords(stage, string(opportunity.AgencyUSFS), stats.Direct+stats.Matched)
	return out, stats
}

func match(ix *district.Index, unit string) (*district.Match, error) {
	if ix == nil {
		return nil, district.ErrNoMatch
	}
	return ix.Match(unit)
}

func hasCoordinates(row interim.Row) bool {
	_, errX := strconv.ParseFloat(strings.TrimSpace(row["longitude"]), 64)
	_, errY := strconv.ParseFloat(strings.TrimSpace(row["latitude"]), 64)
	return errX == nil && errY == nil
}
