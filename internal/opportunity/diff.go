package opportunity

import (
	"sort"
	"time"
)

// Snapshot represents a published set of opportunities at a point in time
type Snapshot struct {
	Opportunities map[string]*Opportunity `json:"opportunities"` // keyed by Opportunity.Key()
	UpdatedAt     string                  `json:"updated_at"`    // RFC3339 timestamp
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Opportunities: make(map[string]*Opportunity),
	}
}

// CreateSnapshot creates a snapshot from a list of opportunities
func CreateSnapshot(opps []*Opportunity, updatedAt string) *Snapshot {
	snap := NewSnapshot()
	snap.UpdatedAt = updatedAt
	for _, o := range opps {
		snap.Opportunities[o.Key()] = o
	}
	return snap
}

// Change represents a field change detected between two publishes
type Change struct {
	Key        string    `json:"key"`
	ChangeType string    `json:"change_type"` // "new", "status", "start", "end", "title"
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	DetectedAt time.Time `json:"detected_at"`
}

// DiffResult contains the results of comparing a snapshot with a new set
type DiffResult struct {
	New     []*Opportunity `json:"new"`
	Changed []*Change      `json:"changed"`
	Removed []*Opportunity `json:"removed"`
}

// HasNew reports whether any opportunity appeared since the previous snapshot
func (d *DiffResult) HasNew() bool {
	return len(d.New) > 0
}

// Diff compares current opportunities against a previous snapshot
func Diff(previous *Snapshot, current []*Opportunity, detectedAt time.Time) *DiffResult {
	result := &DiffResult{
		New:     make([]*Opportunity, 0),
		Changed: make([]*Change, 0),
		Removed: make([]*Opportunity, 0),
	}

	if previous == nil {
		previous = NewSnapshot()
	}

	seen := make(map[string]bool, len(current))
	for _, o := range current {
		key := o.Key()
		seen[key] = true

		prev, exists := previous.Opportunities[key]
		if !exists {
			result.New = append(result.New, o)
			continue
		}
		result.Changed = append(result.Changed, DetectChanges(prev, o, detectedAt)...)
	}

	for key, o := range previous.Opportunities {
		if !seen[key] {
			result.Removed = append(result.Removed, o)
		}
	}

	// Sort for consistent output
	SortByKey(result.New)
	SortByKey(result.Removed)
	sort.SliceStable(result.Changed, func(i, j int) bool {
		if result.Changed[i].Key != result.Changed[j].Key {
			return result.Changed[i].Key < result.Changed[j].Key
		}
		return result.Changed[i].ChangeType < result.Changed[j].ChangeType
	})

	return result
}

// DetectChanges compares two versions of the same opportunity
func DetectChanges(previous, current *Opportunity, detectedAt time.Time) []*Change {
	if previous == nil {
		return []*Change{{
			Key:        current.Key(),
			ChangeType: "new",
			NewValue:   current.Title,
			DetectedAt: detectedAt,
		}}
	}

	var changes []*Change
	add := func(kind, oldValue, newValue string) {
		if oldValue == newValue {
			return
		}
		changes = append(changes, &Change{
			Key:        current.Key(),
			ChangeType: kind,
			OldValue:   oldValue,
			NewValue:   newValue,
			DetectedAt: detectedAt,
		})
	}

	add("status", string(previous.Status), string(current.Status))
	add("start", FormatDate(previous.CommentStart), FormatDate(current.CommentStart))
	add("end", FormatDate(previous.CommentEnd), FormatDate(current.CommentEnd))
	add("title", previous.Title, current.Title)

	return changes
}

// SortByKey orders opportunities by agency then project identifier
func SortByKey(opps []*Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].Agency != opps[j].Agency {
			return opps[i].Agency < opps[j].Agency
		}
		return opps[i].ProjectID < opps[j].ProjectID
	})
}
