package publish

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pfrederiksen/comment-map/internal/interim"
	"github.com/pfrederiksen/comment-map/internal/opportunity"
)

// EncodeCSV writes opps with the canonical header
func EncodeCSV(w io.Writer, opps []*opportunity.Opportunity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(opportunity.Columns); err != nil {
		return err
	}
	for _, o := range opps {
		if err := cw.Write(o.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes opps to path, creating parent directories
func WriteCSV(path string, opps []*opportunity.Opportunity) error {
	return writeFile(path, func(w io.Writer) error { return EncodeCSV(w, opps) })
}

// ReadCSV reads a canonical table written by WriteCSV
func ReadCSV(path string) ([]*opportunity.Opportunity, error) {
	t, err := interim.Read(path)
	if err != nil {
		return nil, err
	}
	opps := make([]*opportunity.Opportunity, 0, len(t.Rows))
	for i, row := range t.Rows {
		o, err := FromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		opps = append(opps, o)
	}
	return opps, nil
}

// FromRow parses one canonical row
func FromRow(row interim.Row) (*opportunity.Opportunity, error) {
	o := &opportunity.Opportunity{
		ProjectID:      row["project_id"],
		Agency:         opportunity.Agency(row["agency"]),
		Title:          row["title"],
		Description:    row["description"],
		OfficeOrUnit:   row["office_or_unit"],
		District:       row["district"],
		Status:         opportunity.Status(row["comment_status"]),
		CommentStart:   opportunity.ParseDate(row["comment_start_date"]),
		CommentEnd:     opportunity.ParseDate(row["comment_end_date"]),
		SourceURL:      row["source_url"],
		State:          row["state"],
		GeomSource:     opportunity.GeomSource(row["geom_source"]),
		LocationStatus: opportunity.LocationStatus(row["location_status"]),
	}

	var err error
	if o.Longitude, err = parseFloat(row["longitude"]); err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	if o.Latitude, err = parseFloat(row["latitude"]); err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	if o.Confidence, err = parseFloat(row["scrape_confidence"]); err != nil {
		return nil, fmt.Errorf("scrape_confidence: %w", err)
	}
	if v := row["last_checked_utc"]; v != "" {
		if o.LastChecked, err = time.Parse(time.RFC3339, v); err != nil {
			return nil, fmt.Errorf("last_checked_utc: %w", err)
		}
	}
	return o, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
