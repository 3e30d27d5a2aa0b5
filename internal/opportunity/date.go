package opportunity

import (
	"strings"
	"time"
)

// DateLayout is the ISO calendar date used in every output file
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
}

// ParseDate attempts to parse a scraped or tabular date into a UTC calendar day.
// Returns time.Time{} (zero value) if parsing fails.
// Supports formats: "2025-09-15", RFC3339, "September 15, 2025", "Sep 15, 2025",
// "Sept. 15, 2025", "09/15/2025", "9/15/25" and month-only "09/2025".
func ParseDate(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}

	// "Sept." and "Aug." show up in agency prose
	cleaned := strings.ReplaceAll(text, ".", "")
	cleaned = strings.Replace(cleaned, "Sept ", "Sep ", 1)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	for _, layout := range dateLayouts {
		candidate := cleaned
		if layout == time.RFC3339 || strings.HasPrefix(layout, "2006-01-02 ") || strings.HasPrefix(layout, "2006-01-02T") {
			candidate = text
		}
		if t, err := time.Parse(layout, candidate); err == nil {
			return Day(t)
		}
	}

	// Month-only "07/2025" anchors to the first of the month
	if t, err := time.Parse("01/2006", cleaned); err == nil {
		return Day(t)
	}

	return time.Time{}
}

// FormatDate renders a calendar day as YYYY-MM-DD or "" when unknown
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

// Day truncates t to midnight UTC of its calendar day
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
