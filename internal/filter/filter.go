// Package filter narrows a set of opportunities for reporting.
//
// Filters combine criteria with AND; within one criterion any listed value
// may match:
//   - Closing window (comment end date between ClosingFrom and ClosingTo, inclusive)
//   - Agencies (exact)
//   - Statuses (exact)
//   - Offices (case-insensitive substring of office_or_unit or district)
//   - Titles (case-insensitive substring)
//
// Example usage:
//
//	f := filter.NewFilter()
//	f.Statuses = []opportunity.Status{opportunity.StatusActive}
//	f.Offices = []string{"Grand Junction"}
//	open := f.Apply(opps)
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

// Filter represents opportunity filtering criteria
type Filter struct {
	// Comment end date range. Records without an end date never match
	// a bounded range.
	ClosingFrom *time.Time `json:"closing_from,omitempty"`
	ClosingTo   *time.Time `json:"closing_to,omitempty"`

	Agencies []opportunity.Agency `json:"agencies,omitempty"`
	Statuses []opportunity.Status `json:"statuses,omitempty"`
	Offices  []string             `json:"offices,omitempty"`
	Titles   []string             `json:"titles,omitempty"`
}

// NewFilter creates a new empty filter with no active criteria.
// The filter will match all opportunities until criteria are added.
func NewFilter() *Filter {
	return &Filter{}
}

// Parse builds a filter from command-line style values. Empty values are
// ignored; closingBy is a YYYY-MM-DD date.
func Parse(agencies, statuses, offices []string, closingBy string) (*Filter, error) {
	f := NewFilter()
	for _, a := range agencies {
		agency := opportunity.ParseAgency(a)
		if agency == "" {
			return nil, fmt.Errorf("unknown agency %q (want BLM or USFS)", a)
		}
		f.Agencies = append(f.Agencies, agency)
	}
	for _, s := range statuses {
		status := opportunity.Status(strings.ToLower(strings.TrimSpace(s)))
		if !status.Valid() {
			return nil, fmt.Errorf("unknown status %q (want active, upcoming, closed or unknown)", s)
		}
		f.Statuses = append(f.Statuses, status)
	}
	for _, o := range offices {
		if o = strings.TrimSpace(o); o != "" {
			f.Offices = append(f.Offices, o)
		}
	}
	if closingBy = strings.TrimSpace(closingBy); closingBy != "" {
		t, err := time.Parse(opportunity.DateLayout, closingBy)
		if err != nil {
			return nil, fmt.Errorf("invalid closing date %q (want YYYY-MM-DD)", closingBy)
		}
		f.ClosingTo = &t
	}
	return f, nil
}

// IsEmpty checks if the filter has any active criteria.
// Returns true if the filter would match every opportunity.
func (f *Filter) IsEmpty() bool {
	return f.ClosingFrom == nil &&
		f.ClosingTo == nil &&
		len(f.Agencies) == 0 &&
		len(f.Statuses) == 0 &&
		len(f.Offices) == 0 &&
		len(f.Titles) == 0
}

// Matches checks if an opportunity matches all active filter criteria
func (f *Filter) Matches(o *opportunity.Opportunity) bool {
	if f.IsEmpty() {
		return true
	}

	if f.ClosingFrom != nil || f.ClosingTo != nil {
		if o.CommentEnd.IsZero() {
			return false
		}
		end := o.CommentEnd.Truncate(24 * time.Hour)
		if f.ClosingFrom != nil && end.Before(f.ClosingFrom.Truncate(24*time.Hour)) {
			return false
		}
		if f.ClosingTo != nil && end.After(f.ClosingTo.Truncate(24*time.Hour)) {
			return false
		}
	}

	if len(f.Agencies) > 0 {
		matched := false
		for _, a := range f.Agencies {
			if o.Agency == a {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(f.Statuses) > 0 {
		matched := false
		for _, s := range f.Statuses {
			if o.Status == s {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(f.Offices) > 0 && !containsAny(o.OfficeOrUnit+" | "+o.District, f.Offices) {
		return false
	}
	if len(f.Titles) > 0 && !containsAny(o.Title, f.Titles) {
		return false
	}

	return true
}

func containsAny(s string, needles []string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// Apply returns only the matching opportunities.
// If the filter is empty, returns the original slice unchanged.
func (f *Filter) Apply(opps []*opportunity.Opportunity) []*opportunity.Opportunity {
	if f.IsEmpty() {
		return opps
	}

	filtered := make([]*opportunity.Opportunity, 0, len(opps))
	for _, o := range opps {
		if f.Matches(o) {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Format: "Closing by: Sep 15, 2025 | Agencies: BLM | Statuses: active"
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string
	if f.ClosingFrom != nil {
		parts = append(parts, fmt.Sprintf("Closing from: %s", f.ClosingFrom.Format("Jan 2, 2006")))
	}
	if f.ClosingTo != nil {
		parts = append(parts, fmt.Sprintf("Closing by: %s", f.ClosingTo.Format("Jan 2, 2006")))
	}
	if len(f.Agencies) > 0 {
		names := make([]string, len(f.Agencies))
		for i, a := range f.Agencies {
			names[i] = string(a)
		}
		parts = append(parts, fmt.Sprintf("Agencies: %s", strings.Join(names, ", ")))
	}
	if len(f.Statuses) > 0 {
		names := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			names[i] = string(s)
		}
		parts = append(parts, fmt.Sprintf("Statuses: %s", strings.Join(names, ", ")))
	}
	if len(f.Offices) > 0 {
		parts = append(parts, fmt.Sprintf("Offices: %s", strings.Join(f.Offices, ", ")))
	}
	if len(f.Titles) > 0 {
		parts = append(parts, fmt.Sprintf("Titles: %s", strings.Join(f.Titles, ", ")))
	}
	return strings.Join(parts, " | ")
}
