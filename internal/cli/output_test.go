package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

func opp(agency opportunity.Agency, id, title, end string) *opportunity.Opportunity {
	o := &opportunity.Opportunity{Agency: agency, ProjectID: id, Title: title, Status: opportunity.StatusActive}
	if end != "" {
		o.CommentEnd, _ = time.Parse(opportunity.DateLayout, end)
	}
	return o
}

func keys(opps []*opportunity.Opportunity) []string {
	out := make([]string, len(opps))
	for i, o := range opps {
		out[i] = o.Key()
	}
	return out
}

func TestSortOpportunities(t *testing.T) {
	tests := []struct {
		name  string
		order SortOrder
		want  []string
	}{
		{"by end", SortByEnd, []string{"USFS|2", "BLM|1", "BLM|3", "USFS|4"}},
		{"by agency", SortByAgency, []string{"BLM|1", "BLM|3", "USFS|2", "USFS|4"}},
		{"by title", SortByTitle, []string{"BLM|1", "USFS|2", "BLM|3", "USFS|4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opps := []*opportunity.Opportunity{
				opp(opportunity.AgencyUSFS, "4", "delta", ""),
				opp(opportunity.AgencyBLM, "3", "Charlie", ""),
				opp(opportunity.AgencyUSFS, "2", "bravo", "2025-09-01"),
				opp(opportunity.AgencyBLM, "1", "Alpha", "2025-09-15"),
			}
			sortOpportunities(opps, tt.order)
			got := keys(opps)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("sortOpportunities(%s) = %v, want %v", tt.order, got, tt.want)
				}
			}
		})
	}
}

func TestParseSortOrder(t *testing.T) {
	if o, err := parseSortOrder(""); err != nil || o != SortByEnd {
		t.Errorf("parseSortOrder(\"\") = %q, %v", o, err)
	}
	if o, err := parseSortOrder("Title"); err != nil || o != SortByTitle {
		t.Errorf("parseSortOrder(Title) = %q, %v", o, err)
	}
	if _, err := parseSortOrder("size"); err == nil {
		t.Error("parseSortOrder(size) expected error")
	}
}

func TestWriteOutput_Text(t *testing.T) {
	diff := &opportunity.DiffResult{
		New: []*opportunity.Opportunity{
			opp(opportunity.AgencyUSFS, "58231", "Elk Creek", ""),
			opp(opportunity.AgencyBLM, "2033900", "Sample BLM Project", "2025-09-15"),
		},
		Removed: []*opportunity.Opportunity{opp(opportunity.AgencyBLM, "1", "Old", "")},
	}
	result := newOutputResult("CO", diff, SortByEnd)

	var buf bytes.Buffer
	if err := WriteOutput(&buf, result, FormatText, true); err != nil {
		t.Fatalf("WriteOutput() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"BLM (1 new):",
		"NEW: Sample BLM Project (comments due 2025-09-15)",
		"USFS (1 new):",
		"NEW: Elk Creek\n",
		"ID: 58231",
		"Total: 2 new across 2 agencies",
		"Removed: 1",
		"BLM|1: Old",
	} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteOutput_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteOutput(&buf, newOutputResult("CO", nil, SortByEnd), FormatText, false); err != nil {
		t.Fatalf("WriteOutput() error: %v", err)
	}
	if buf.String() != "No new opportunities found.\n" {
		t.Errorf("WriteOutput() = %q", buf.String())
	}
	if err := WriteOutput(&buf, newOutputResult("CO", nil, SortByEnd), "xml", false); err == nil {
		t.Error("WriteOutput(xml) expected error")
	}
}
