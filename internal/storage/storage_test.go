package storage

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

func testOpportunity(agency opportunity.Agency, id, title string) *opportunity.Opportunity {
	return &opportunity.Opportunity{
		ProjectID:      id,
		Agency:         agency,
		Title:          title,
		Status:         opportunity.StatusActive,
		CommentStart:   time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		CommentEnd:     time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
		SourceURL:      "https://example.com/" + id,
		State:          "CO",
		Longitude:      -105.5,
		Latitude:       39.7,
		GeomSource:     opportunity.GeomDirect,
		LocationStatus: opportunity.LocationOK,
		Confidence:     0.8,
	}
}

func TestSaveOpportunities_RoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	opp1 := testOpportunity(opportunity.AgencyBLM, "2033900", "Sample BLM Project")
	opp2 := testOpportunity(opportunity.AgencyUSFS, "58231", "Elk Creek")
	opp2.CommentStart = time.Time{}

	tests := []struct {
		name  string
		state string
		save  []*opportunity.Opportunity
		key   string
		want  *opportunity.Opportunity
	}{
		{
			name:  "combined snapshot",
			state: "all",
			save:  []*opportunity.Opportunity{opp1, opp2},
			key:   "BLM|2033900",
			want:  opp1,
		},
		{
			name:  "unknown start date",
			state: "all",
			save:  []*opportunity.Opportunity{opp1, opp2},
			key:   "USFS|58231",
			want:  opp2,
		},
		{
			name:  "state snapshot",
			state: "CO",
			save:  []*opportunity.Opportunity{opp2},
			key:   "USFS|58231",
			want:  opp2,
		},
		{
			name:  "replaced snapshot drops old keys",
			state: "all",
			save:  []*opportunity.Opportunity{opp2},
			key:   "BLM|2033900",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := storage.SaveOpportunities(tt.save, tt.state); err != nil {
				t.Fatalf("SaveOpportunities() error: %v", err)
			}
			snap, err := storage.LoadSnapshot(tt.state)
			if err != nil {
				t.Fatalf("LoadSnapshot() error: %v", err)
			}

			got, ok := snap.Opportunities[tt.key]
			if tt.want == nil {
				if ok {
					t.Errorf("snapshot still has %s", tt.key)
				}
				return
			}
			if !ok {
				t.Fatalf("snapshot missing %s", tt.key)
			}
			if got.Key() != tt.want.Key() || got.Title != tt.want.Title {
				t.Errorf("Opportunities[%s] = %+v, want %+v", tt.key, got, tt.want)
			}
			if !got.CommentStart.Equal(tt.want.CommentStart) {
				t.Errorf("CommentStart = %v, want %v", got.CommentStart, tt.want.CommentStart)
			}
			if !got.CommentEnd.Equal(tt.want.CommentEnd) {
				t.Errorf("CommentEnd = %v, want %v", got.CommentEnd, tt.want.CommentEnd)
			}
		})
	}
}

func TestSnapshotPath(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if got := storage.SnapshotPath(""); !strings.HasSuffix(got, "snapshot.json") {
		t.Errorf("SnapshotPath(\"\") = %q", got)
	}
	if got := storage.SnapshotPath("all"); !strings.HasSuffix(got, "snapshot.json") {
		t.Errorf("SnapshotPath(all) = %q", got)
	}
	if got := storage.SnapshotPath("co"); !strings.HasSuffix(got, "snapshot_CO.json") {
		t.Errorf("SnapshotPath(co) = %q", got)
	}
}

func TestLoadSnapshot_Missing(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	snap, err := storage.LoadSnapshot("CO")
	if err != nil {
		t.Fatalf("LoadSnapshot() unexpected error: %v", err)
	}
	if len(snap.Opportunities) != 0 {
		t.Errorf("LoadSnapshot() returned %d opportunities, want 0", len(snap.Opportunities))
	}
}

func TestSaveSnapshot_SetsUpdatedAt(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	storage.now = func() time.Time { return time.Date(2025, 8, 21, 9, 30, 0, 0, time.UTC) }

	if err := storage.SaveOpportunities([]*opportunity.Opportunity{testOpportunity(opportunity.AgencyBLM, "1", "T")}, "CO"); err != nil {
		t.Fatalf("SaveOpportunities() error: %v", err)
	}

	snap, err := storage.LoadSnapshot("CO")
	if err != nil {
		t.Fatalf("LoadSnapshot() error: %v", err)
	}
	if snap.UpdatedAt != "2025-08-21T09:30:00Z" {
		t.Errorf("UpdatedAt = %q, want 2025-08-21T09:30:00Z", snap.UpdatedAt)
	}
	if _, ok := snap.Opportunities["BLM|1"]; !ok {
		t.Errorf("snapshot missing BLM|1")
	}
}

func TestLoadSnapshot_Corrupt(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := os.WriteFile(storage.SnapshotPath("CO"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := storage.LoadSnapshot("CO"); err == nil {
		t.Error("LoadSnapshot() expected error for corrupt file")
	}
}
