package cli

import (
	"sort"
	"strings"

	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByEnd    SortOrder = "end"
	SortByAgency SortOrder = "agency"
	SortByTitle  SortOrder = "title"
)

func parseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case SortByEnd, SortByAgency, SortByTitle:
		return o, nil
	case "":
		return SortByEnd, nil
	}
	return "", errInvalid("sort", s, "end, agency or title")
}

// sortOpportunities sorts opportunities based on the specified sort order
func sortOpportunities(opps []*opportunity.Opportunity, sortOrder SortOrder) {
	switch sortOrder {
	case SortByEnd:
		sort.SliceStable(opps, func(i, j int) bool {
			return compareByEnd(opps[i], opps[j])
		})
	case SortByAgency:
		sort.SliceStable(opps, func(i, j int) bool {
			if opps[i].Agency != opps[j].Agency {
				return opps[i].Agency < opps[j].Agency
			}
			// If agencies are equal, sort by closing date
			return compareByEnd(opps[i], opps[j])
		})
	case SortByTitle:
		sort.SliceStable(opps, func(i, j int) bool {
			ti, tj := strings.ToLower(opps[i].Title), strings.ToLower(opps[j].Title)
			if ti != tj {
				return ti < tj
			}
			return compareByEnd(opps[i], opps[j])
		})
	}
}

// compareByEnd orders by comment end date, soonest first.
// Records without an end date go last.
func compareByEnd(i, j *opportunity.Opportunity) bool {
	if !i.CommentEnd.IsZero() && !j.CommentEnd.IsZero() {
		if !i.CommentEnd.Equal(j.CommentEnd) {
			return i.CommentEnd.Before(j.CommentEnd)
		}
	} else if !i.CommentEnd.IsZero() {
		return true
	} else if !j.CommentEnd.IsZero() {
		return false
	}

	if i.Agency != j.Agency {
		return i.Agency < j.Agency
	}
	return strings.ToLower(i.Title) < strings.ToLower(j.Title)
}
