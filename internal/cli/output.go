package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pfrederiksen/comment-map/internal/opportunity"
	"github.com/pfrederiksen/comment-map/internal/publish"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// OutputResult contains data to be output
type OutputResult struct {
	CheckedAt        time.Time                             `json:"checked_at"`
	State            string                                `json:"state"`
	Published        int                                   `json:"published,omitempty"`
	Duplicates       int                                   `json:"duplicates,omitempty"`
	Unlocated        int                                   `json:"unlocated,omitempty"`
	NewOpportunities []*opportunity.Opportunity            `json:"new_opportunities"`
	NewCount         int                                   `json:"new_count"`
	Changed          []*opportunity.Change                 `json:"changed"`
	Removed          []*opportunity.Opportunity            `json:"removed"`
	ByAgency         map[string][]*opportunity.Opportunity `json:"by_agency,omitempty"`
	FirstSeen        map[string]time.Time                  `json:"first_seen,omitempty"`
}

// newOutputResult builds output from a diff, ordering new records by sortOrder
func newOutputResult(state string, diff *opportunity.DiffResult, sortOrder SortOrder) *OutputResult {
	result := &OutputResult{
		CheckedAt:        time.Now().UTC(),
		State:            state,
		NewOpportunities: []*opportunity.Opportunity{},
		Changed:          []*opportunity.Change{},
		Removed:          []*opportunity.Opportunity{},
	}
	if diff == nil {
		return result
	}

	sortOpportunities(diff.New, sortOrder)
	result.NewOpportunities = diff.New
	result.NewCount = len(diff.New)
	result.Changed = diff.Changed
	result.Removed = diff.Removed

	if len(diff.New) > 0 {
		result.ByAgency = make(map[string][]*opportunity.Opportunity)
		for _, o := range diff.New {
			result.ByAgency[string(o.Agency)] = append(result.ByAgency[string(o.Agency)], o)
		}
	}
	return result
}

// fromReport adds publish counts to the diff output
func fromReport(state string, report *publish.Report, sortOrder SortOrder) *OutputResult {
	result := newOutputResult(state, report.Diff, sortOrder)
	result.Published = report.Published
	result.Duplicates = report.Duplicates
	result.Unlocated = report.Unlocated
	return result
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *OutputResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	if result.Published > 0 {
		fmt.Fprintf(w, "Published %d opportunities (%d duplicates, %d without location)\n",
			result.Published, result.Duplicates, result.Unlocated)
	}

	if result.NewCount == 0 {
		fmt.Fprintln(w, "No new opportunities found.")
	} else {
		agencies := make([]string, 0, len(result.ByAgency))
		for agency := range result.ByAgency {
			agencies = append(agencies, agency)
		}
		sort.Strings(agencies)

		for _, agency := range agencies {
			opps := result.ByAgency[agency]
			fmt.Fprintf(w, "\n%s (%d new):\n", agency, len(opps))
			for _, o := range opps {
				fmt.Fprintf(w, "  NEW: %s%s\n", o.Title, closing(o))
				if verbose {
					fmt.Fprintf(w, "       ID: %s\n", o.ProjectID)
					fmt.Fprintf(w, "       Status: %s\n", o.Status)
					if o.OfficeOrUnit != "" {
						fmt.Fprintf(w, "       Office: %s\n", o.OfficeOrUnit)
					}
					if o.SourceURL != "" {
						fmt.Fprintf(w, "       URL: %s\n", o.SourceURL)
					}
					if seen, ok := result.FirstSeen[o.Key()]; ok {
						fmt.Fprintf(w, "       First seen: %s\n", opportunity.FormatDate(seen))
					}
				}
			}
		}
		fmt.Fprintf(w, "\nTotal: %d new across %d agencies\n", result.NewCount, len(result.ByAgency))
	}

	if verbose {
		for _, c := range result.Changed {
			fmt.Fprintf(w, "CHANGED %s %s: %q -> %q\n", c.Key, c.ChangeType, c.OldValue, c.NewValue)
		}
	}
	if len(result.Removed) > 0 {
		fmt.Fprintf(w, "Removed: %d\n", len(result.Removed))
		if verbose {
			for _, o := range result.Removed {
				fmt.Fprintf(w, "  %s: %s\n", o.Key(), o.Title)
			}
		}
	}
	return nil
}

func closing(o *opportunity.Opportunity) string {
	if o.CommentEnd.IsZero() {
		return ""
	}
	return " (comments due " + opportunity.FormatDate(o.CommentEnd) + ")"
}
