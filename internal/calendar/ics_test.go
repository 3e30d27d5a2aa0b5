package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

var stamp = time.Date(2025, 8, 21, 9, 30, 0, 0, time.UTC)

func deadline() *opportunity.Opportunity {
	return &opportunity.Opportunity{
		ProjectID:      "2033900",
		Agency:         opportunity.AgencyBLM,
		Title:          "Book Cliffs; Travel, Management",
		OfficeOrUnit:   "Grand Junction Field Office",
		CommentStart:   time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
		CommentEnd:     time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
		SourceURL:      "https://eplanning.blm.gov/eplanning-ui/project/2033900/510",
		Longitude:      -108.55,
		Latitude:       39.06,
		LocationStatus: opportunity.LocationOK,
	}
}

// unfold joins folded content lines back together
func unfold(ics string) string {
	return strings.ReplaceAll(ics, "\r\n ", "")
}

func TestGenerateICS(t *testing.T) {
	ics := GenerateICS([]*opportunity.Opportunity{deadline()}, stamp)

	if !strings.HasPrefix(ics, "BEGIN:VCALENDAR\r\n") {
		t.Error("ICS should start with BEGIN:VCALENDAR")
	}
	if !strings.HasSuffix(ics, "END:VCALENDAR\r\n") {
		t.Error("ICS should end with END:VCALENDAR")
	}

	flat := unfold(ics)
	for _, want := range []string{
		"DTSTAMP:20250821T093000Z",
		"DTSTART;VALUE=DATE:20250915",
		"DTEND;VALUE=DATE:20250916",
		`SUMMARY:BLM comments due: Book Cliffs\; Travel\, Management`,
		`Comment period opened 2025-08-15\nOffice: Grand Junction Field Office`,
		"LOCATION:Grand Junction Field Office",
		"GEO:39.06;-108.55",
		"URL:https://eplanning.blm.gov/eplanning-ui/project/2033900/510",
	} {
		if !strings.Contains(flat, want) {
			t.Errorf("ICS missing %q", want)
		}
	}
}

func TestGenerateICS_SkipsUnknownEnd(t *testing.T) {
	noEnd := deadline()
	noEnd.CommentEnd = time.Time{}

	ics := GenerateICS([]*opportunity.Opportunity{noEnd}, stamp)
	if strings.Contains(ics, "BEGIN:VEVENT") {
		t.Error("opportunity without an end date should not produce an event")
	}
}

func TestGenerateICS_StableUID(t *testing.T) {
	a := deadline()
	b := deadline()
	b.Title = "Renamed"

	if uid(a) != uid(b) {
		t.Error("UID should depend only on the opportunity key")
	}
	b.ProjectID = "2033901"
	if uid(a) == uid(b) {
		t.Error("different keys should give different UIDs")
	}
}

func TestWriteLine_Folds(t *testing.T) {
	var b strings.Builder
	long := "DESCRIPTION:" + strings.Repeat("é", 60)
	writeLine(&b, long)

	for _, line := range strings.Split(strings.TrimSuffix(b.String(), "\r\n"), "\r\n") {
		if len(line) > 75 {
			t.Errorf("line is %d octets, want <= 75", len(line))
		}
	}
	if unfold(b.String()) != long+"\r\n" {
		t.Error("unfolded line should equal the input")
	}
}

func TestEscapeICS(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"a,b", `a\,b`},
		{"a;b", `a\;b`},
		{`a\b`, `a\\b`},
		{"a\nb", `a\nb`},
	}
	for _, tt := range tests {
		if got := escapeICS(tt.input); got != tt.want {
			t.Errorf("escapeICS(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
