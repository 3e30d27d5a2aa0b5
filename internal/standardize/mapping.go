// Package standardize maps agency interim tables onto the canonical
// opportunity schema.
package standardize

import (
	"strings"

	"github.com/pfrederiksen/comment-map/internal/interim"
	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

// Mapping lists, per canonical field, the source columns to try in order
type Mapping struct {
	ProjectID   []string
	Title       []string
	Description []string
	Office      []string
	District    []string
	Start       []string
	End         []string
	SourceURL   []string
	State       []string
	Longitude   []string
	Latitude    []string
	GeomSource  []string
	Confidence  []string
	LastChecked []string
}

// Mappings holds the field mapping for each agency
var Mappings = map[opportunity.Agency]Mapping{
	opportunity.AgencyBLM: {
		ProjectID:   []string{"project_id", "ProjectID", "ID"},
		Title:       []string{"title", "name", "ProjectName", "project_name"},
		Description: []string{"description", "Summary", "ProjectDescription", "ProjectSummary"},
		Office:      []string{"office_or_unit", "office", "LeadOffice"},
		District:    []string{"district"},
		Start:       []string{"comment_start_date", "comment_start", "start_date", "PublicCommentStartDate"},
		End:         []string{"comment_end_date", "comment_end", "PublicCommentEndDate"},
		SourceURL:   []string{"source_url", "url", "ProjectURL"},
		State:       []string{"state", "State"},
		Longitude:   []string{"longitude", "Longitude", "X", "X_match"},
		Latitude:    []string{"latitude", "Latitude", "Y", "Y_match"},
		GeomSource:  []string{"geom_source"},
		Confidence:  []string{"scrape_confidence", "confidence"},
		LastChecked: []string{"last_checked_utc"},
	},
	opportunity.AgencyUSFS: {
		ProjectID:   []string{"project_id", "ProjectID"},
		Title:       []string{"title", "name"},
		Description: []string{"description", "location_desc", "notes"},
		Office:      []string{"office_or_unit", "unit"},
		District:    []string{"district", "matched_units"},
		Start:       []string{"comment_start_date", "comment_start", "start_date", "expected_comment_start"},
		End:         []string{"comment_end_date", "comment_end", "expected_comment_end"},
		SourceURL:   []string{"source_url", "url"},
		State:       []string{"state"},
		Longitude:   []string{"longitude"},
		Latitude:    []string{"latitude"},
		GeomSource:  []string{"geom_source"},
		Confidence:  []string{"scrape_confidence", "confidence"},
		LastChecked: []string{"last_checked_utc"},
	},
}

// DetectAgency guesses which agency produced a table. An agency column
// wins; otherwise column names and URLs decide, defaulting to USFS.
func DetectAgency(t *interim.Table) opportunity.Agency {
	if t.Has("agency") {
		for _, row := range t.Rows {
			if a := opportunity.ParseAgency(row["agency"]); a != "" {
				return a
			}
		}
	}

	if t.Has("project_id") && t.Has("state") && t.Has("latitude") && t.Has("longitude") {
		if sampleMentionsBLM(t, 5) {
			return opportunity.AgencyBLM
		}
	}
	if t.Has("unit") || t.Has("comment_start") || t.Has("comment_end") {
		return opportunity.AgencyUSFS
	}
	if sampleMentionsBLM(t, 1) {
		return opportunity.AgencyBLM
	}
	return opportunity.AgencyUSFS
}

func sampleMentionsBLM(t *interim.Table, n int) bool {
	for i, row := range t.Rows {
		if i >= n {
			break
		}
		if strings.Contains(strings.ToLower(row.Get("url", "source_url")), "blm.gov") {
			return true
		}
	}
	return false
}
