package standardize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/comment-map/internal/interim"
	"github.com/pfrederiksen/comment-map/internal/logger"
	"github.com/pfrederiksen/comment-map/internal/metrics"
	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

const stage = "standardize"

// ErrUnmappable marks a row with neither an identifier nor a title
var ErrUnmappable = errors.New("row has no identifier or title")

// Options control standardization
type Options struct {
	// Agency forces the mapping; empty means detect per table
	Agency opportunity.Agency
	// AsOf is the reference date statuses are computed against
	AsOf time.Time
}

// Result is the canonical output of one or more interim tables
type Result struct {
	Opportunities []*opportunity.Opportunity
	// Unlocated rows mapped cleanly but have no usable coordinate
	Unlocated  []*opportunity.Opportunity
	Unmappable int
}

// Standardize maps every table into canonical records sorted by
// (agency, project_id). Output depends only on the inputs and opts.AsOf.
func Standardize(tables []*interim.Table, opts Options) *Result {
	res := &Result{}
	for _, t := range tables {
		agency := opts.Agency
		if agency == "" {
			agency = DetectAgency(t)
		}

		for i, row := range t.Rows {
			rowAgency := agency
			if opts.Agency == "" {
				if a := opportunity.ParseAgency(row["agency"]); a != "" {
					rowAgency = a
				}
			}

			opp, err := MapRow(row, rowAgency, opts.AsOf)
			if err != nil {
				logger.Warn("Excluding row", logger.Fields{"agency": string(rowAgency), "row": i + 1}, err)
				metrics.IncFailure(stage, "unmappable")
				res.Unmappable++
				continue
			}
			if !opp.HasLocation() {
				logger.Warn("Row has no location", logger.Fields{
					"agency":     string(opp.Agency),
					"project_id": opp.ProjectID,
				}, nil)
				metrics.IncFailure(stage, "no_location")
				res.Unlocated = append(res.Unlocated, opp)
				continue
			}
			res.Opportunities = append(res.Opportunities, opp)
		}
	}

	opportunity.SortByKey(res.Opportunities)
	opportunity.SortByKey(res.Unlocated)
	for _, a := range []opportunity.Agency{opportunity.AgencyBLM, opportunity.AgencyUSFS} {
		n := 0
		for _, o := range res.Opportunities {
			if o.Agency == a {
				n++
			}
		}
		metrics.AddRecords(stage, string(a), n)
	}
	return res
}

// MapRow converts one interim row to the canonical shape using the
// agency's mapping. The status is computed against asOf.
func MapRow(row interim.Row, agency opportunity.Agency, asOf time.Time) (*opportunity.Opportunity, error) {
	m, ok := Mappings[agency]
	if !ok {
		return nil, fmt.Errorf("no mapping for agency %q", agency)
	}

	id := row.Get(m.ProjectID...)
	title := cleanText(row.Get(m.Title...))
	if strings.EqualFold(title, "unknown") {
		title = ""
	}
	if opportunity.IsUnknownID(id) && title == "" {
		return nil, ErrUnmappable
	}

	o := &opportunity.Opportunity{
		ProjectID:    id,
		Agency:       agency,
		Title:        title,
		Description:  strings.TrimSpace(row.Get(m.Description...)),
		OfficeOrUnit: row.Get(m.Office...),
		District:     row.Get(m.District...),
		CommentStart: opportunity.ParseDate(row.Get(m.Start...)),
		CommentEnd:   opportunity.ParseDate(row.Get(m.End...)),
		SourceURL:    row.Get(m.SourceURL...),
		State:        strings.ToUpper(row.Get(m.State...)),
		Confidence:   parseFloat(row.Get(m.Confidence...)),
		LastChecked:  parseTimestamp(row.Get(m.LastChecked...)),
	}

	if opportunity.IsUnknownID(o.ProjectID) {
		o.ProjectID = opportunity.SyntheticID(agency, o.Title, o.SourceURL)
	}
	if o.Title == "" {
		o.Title = o.ProjectID
	}
	o.Refresh(asOf)

	if lon, lat, ok := Coordinates(row.Get(m.Longitude...), row.Get(m.Latitude...)); ok {
		o.Longitude, o.Latitude = lon, lat
		o.LocationStatus = opportunity.LocationOK
		o.GeomSource = geomSource(row.Get(m.GeomSource...))
	} else {
		o.LocationStatus = opportunity.LocationUnknown
		o.GeomSource = opportunity.GeomNone
	}

	return o, nil
}

func geomSource(v string) opportunity.GeomSource {
	if opportunity.GeomSource(v) == opportunity.GeomDerived {
		return opportunity.GeomDerived
	}
	return opportunity.GeomDirect
}

// cleanText trims whitespace and trailing periods
func cleanText(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ". \t\r\n")
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return opportunity.ParseDate(s)
}
