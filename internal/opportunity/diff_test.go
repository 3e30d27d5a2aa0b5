package opportunity

import (
	"testing"
	"time"
)

func opp(agency Agency, id, title, status string) *Opportunity {
	return &Opportunity{ProjectID: id, Agency: agency, Title: title, Status: Status(status)}
}

func TestDiff(t *testing.T) {
	now := time.Date(2025, 8, 21, 0, 0, 0, 0, time.UTC)

	previous := CreateSnapshot([]*Opportunity{
		opp(AgencyBLM, "1", "Kept", "active"),
		opp(AgencyBLM, "2", "Closing", "active"),
		opp(AgencyUSFS, "9", "Gone", "active"),
	}, "2025-08-20T00:00:00Z")

	current := []*Opportunity{
		opp(AgencyUSFS, "5", "Brand new", "upcoming"),
		opp(AgencyBLM, "2", "Closing", "closed"),
		opp(AgencyBLM, "1", "Kept", "active"),
	}

	result := Diff(previous, current, now)

	if len(result.New) != 1 || result.New[0].ProjectID != "5" {
		t.Fatalf("New = %v, want USFS 5", result.New)
	}
	if !result.HasNew() {
		t.Error("HasNew() = false, want true")
	}
	if len(result.Changed) != 1 {
		t.Fatalf("Changed = %d entries, want 1", len(result.Changed))
	}
	ch := result.Changed[0]
	if ch.Key != "BLM|2" || ch.ChangeType != "status" || ch.OldValue != "active" || ch.NewValue != "closed" {
		t.Errorf("Changed[0] = %+v", ch)
	}
	if len(result.Removed) != 1 || result.Removed[0].ProjectID != "9" {
		t.Errorf("Removed = %v, want USFS 9", result.Removed)
	}
}

func TestDiff_NilPrevious(t *testing.T) {
	current := []*Opportunity{opp(AgencyUSFS, "b", "B", "active"), opp(AgencyBLM, "a", "A", "active")}

	result := Diff(nil, current, time.Now())

	if len(result.New) != 2 {
		t.Fatalf("New = %d, want 2", len(result.New))
	}
	if result.New[0].Agency != AgencyBLM {
		t.Errorf("New should be sorted by agency, got %s first", result.New[0].Agency)
	}
}

func TestDetectChanges(t *testing.T) {
	now := time.Now()
	prev := &Opportunity{ProjectID: "1", Agency: AgencyBLM, Title: "T", CommentEnd: ParseDate("2025-09-01")}
	cur := &Opportunity{ProjectID: "1", Agency: AgencyBLM, Title: "T", CommentEnd: ParseDate("2025-09-15")}

	changes := DetectChanges(prev, cur, now)
	if len(changes) != 1 || changes[0].ChangeType != "end" || changes[0].NewValue != "2025-09-15" {
		t.Errorf("DetectChanges() = %+v", changes)
	}

	if got := DetectChanges(nil, cur, now); len(got) != 1 || got[0].ChangeType != "new" {
		t.Errorf("DetectChanges(nil) = %+v", got)
	}

	if got := DetectChanges(cur, cur, now); len(got) != 0 {
		t.Errorf("DetectChanges(same) = %+v, want none", got)
	}
}
