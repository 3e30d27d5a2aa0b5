package publish

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/comment-map/internal/archive"
	"github.com/pfrederiksen/comment-map/internal/calendar"
	"github.com/pfrederiksen/comment-map/internal/logger"
	"github.com/pfrederiksen/comment-map/internal/metrics"
	"github.com/pfrederiksen/comment-map/internal/opportunity"
	"github.com/pfrederiksen/comment-map/internal/storage"
)

const stage = "publish"

// Options say where a publish writes and what it compares against
type Options struct {
	CSVPath      string
	GeoJSONPath  string
	MapAssetPath string
	// CalendarPath, when set, receives an iCalendar feed of comment deadlines
	CalendarPath string

	// State keys the snapshot used for the change report
	State   string
	Storage *storage.Storage
	Archive *archive.Archive
	Now     time.Time
}

// Report summarizes a publish
type Report struct {
	Input         int                        `json:"input"`
	Published     int                        `json:"published"`
	Duplicates    int                        `json:"duplicates"`
	Unlocated     int                        `json:"unlocated"`
	Diff          *opportunity.DiffResult    `json:"diff,omitempty"`
	Archived      *archive.RecordResult      `json:"archived,omitempty"`
	ArchiveRuns   int                        `json:"archive_runs,omitempty"`
	Opportunities []*opportunity.Opportunity `json:"-"`
}

// HasNew reports whether the publish introduced opportunities not in the
// previous snapshot
func (r *Report) HasNew() bool {
	return r.Diff != nil && r.Diff.HasNew()
}

// Publish dedupes opps and writes the CSV and GeoJSON from the same ordered
// slice. Records without a location are left out of both. When configured it
// then stages the map asset, diffs against and replaces the stored snapshot,
// and records the set in the archive.
func Publish(ctx context.Context, opps []*opportunity.Opportunity, opts Options) (*Report, error) {
	report := &Report{Input: len(opps)}

	located := make([]*opportunity.Opportunity, 0, len(opps))
	for _, o := range opps {
		if !o.HasLocation() {
			report.Unlocated++
			continue
		}
		located = append(located, o)
	}

	final := Dedupe(located)
	report.Duplicates = len(located) - len(final)
	report.Published = len(final)
	report.Opportunities = final

	if opts.CSVPath != "" {
		if err := WriteCSV(opts.CSVPath, final); err != nil {
			return nil, err
		}
	}
	if opts.GeoJSONPath != "" {
		if err := WriteGeoJSON(opts.GeoJSONPath, final); err != nil {
			return nil, err
		}
		if opts.MapAssetPath != "" {
			if err := StageMapAsset(opts.GeoJSONPath, opts.MapAssetPath); err != nil {
				return nil, fmt.Errorf("staging map asset: %w", err)
			}
		}
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if opts.CalendarPath != "" {
		err := writeFile(opts.CalendarPath, func(w io.Writer) error {
			_, err := io.WriteString(w, calendar.GenerateICS(final, now))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("writing calendar: %w", err)
		}
	}

	if opts.Storage != nil {
		previous, err := opts.Storage.LoadSnapshot(opts.State)
		if err != nil {
			return nil, err
		}
		report.Diff = opportunity.Diff(previous, final, now)
		if err := opts.Storage.SaveOpportunities(final, opts.State); err != nil {
			return nil, err
		}
	}

	if opts.Archive != nil {
		res, err := opts.Archive.Record(ctx, final, now)
		if err != nil {
			return nil, fmt.Errorf("archiving: %w", err)
		}
		report.Archived = &res
		if report.ArchiveRuns, err = opts.Archive.Runs(ctx); err != nil {
			return nil, fmt.Errorf("counting archived runs: %w", err)
		}
	}

	for _, a := range []opportunity.Agency{opportunity.AgencyBLM, opportunity.AgencyUSFS} {
		n := 0
		for _, o := range final {
			if o.Agency == a {
				n++
			}
		}
		metrics.AddRecords(stage, string(a), n)
	}
	logger.Info("Published opportunities", logger.Fields{
		"published":  report.Published,
		"duplicates": report.Duplicates,
		"unlocated":  report.Unlocated,
	})
	return report, nil
}
