package scraper

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

var (
	// "September 15, 2025", "Sep 15 2025", "Sept. 15, 2025"
	longDatePattern = regexp.MustCompile(`(?i)\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+\d{1,2},?\s+\d{4}\b`)
	// "09/15/2025"
	slashDatePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)

	openingCue = regexp.MustCompile(`(?i)\b(?:begins?|beginning|starts?|starting|opens?|opening|from)\s*:?\s+(?:on\s+)?$`)
)

// cueWindow is how much text before a lone date is checked for an opening cue
const cueWindow = 40

type foundDate struct {
	at   int
	date time.Time
}

func findDates(text string) []foundDate {
	var found []foundDate
	for _, pat := range []*regexp.Regexp{longDatePattern, slashDatePattern} {
		for _, loc := range pat.FindAllStringIndex(text, -1) {
			d := opportunity.ParseDate(text[loc[0]:loc[1]])
			if d.IsZero() {
				continue
			}
			found = append(found, foundDate{at: loc[0], date: d})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].at < found[j].at })
	return found
}

// ExtractDateRange scrapes plausible dates out of text and returns a
// best-effort comment window. Zero values mean unknown.
//
// Two or more distinct dates give the earliest as start and the latest as end.
// A lone date is an end date ("Comments are due by ...") unless the words just
// before it read like an opening ("Comment period begins ...").
func ExtractDateRange(text string) (start, end time.Time) {
	found := findDates(text)
	if len(found) == 0 {
		return time.Time{}, time.Time{}
	}

	distinct := make(map[time.Time]bool)
	for _, f := range found {
		distinct[f.date] = true
	}

	if len(distinct) == 1 {
		d := found[0].date
		lead := text[max(0, found[0].at-cueWindow):found[0].at]
		if openingCue.MatchString(lead) {
			return d, time.Time{}
		}
		return time.Time{}, d
	}

	dates := make([]time.Time, 0, len(distinct))
	for d := range distinct {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates[0], dates[len(dates)-1]
}

// ExtractNoticeWindow handles SOPA rows that announce a "Comment Period
// Public Notice" without explicit bounds: the first long-form date is the
// expected start and the expected end falls windowDays later.
func ExtractNoticeWindow(text string, windowDays int) (start, end time.Time) {
	if !strings.Contains(strings.ToLower(text), "comment period public notice") {
		return time.Time{}, time.Time{}
	}
	m := longDatePattern.FindString(text)
	if m == "" {
		return time.Time{}, time.Time{}
	}
	start = opportunity.ParseDate(m)
	if start.IsZero() {
		return time.Time{}, time.Time{}
	}
	return start, start.AddDate(0, 0, windowDays)
}

// MentionsComment reports whether text reads like a public comment notice
func MentionsComment(text string) bool {
	return strings.Contains(strings.ToLower(text), "comment")
}

// CleanText collapses whitespace and non-breaking spaces
func CleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
