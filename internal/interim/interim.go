// Package interim reads and writes the per-stage tabular handoff files.
//
// Interim tables are CSV files with a header row; each data row is exposed as
// a header-keyed map so stages can tolerate columns that come and go between
// agencies and scraper versions.
package interim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrMissingInput is returned when a stage's expected input file is absent
var ErrMissingInput = errors.New("missing input file")

// Row is one record keyed by column name
type Row map[string]string

// Table is a header plus rows
type Table struct {
	Header []string
	Rows   []Row
}

// BLM interim columns written by the BLM collector
var BLMColumns = []string{
	"project_id", "agency", "title", "description", "office_or_unit",
	"comment_start_date", "comment_end_date", "source_url", "state",
	"latitude", "longitude", "geom_source", "scrape_confidence",
	"notes_tabs", "last_checked_utc",
}

// USFS interim columns written by the SOPA collector
var USFSColumns = []string{
	"project_id", "agency", "title", "description", "unit", "office_or_unit",
	"comment_start_date", "comment_end_date",
	"expected_comment_start", "expected_comment_end",
	"source_url", "state", "scrape_confidence", "last_checked_utc",
}

// EnrichedColumns are appended to USFS rows by the district enricher
var EnrichedColumns = []string{
	"latitude", "longitude", "geom_source", "district", "matched_units", "location_status",
}

// Read loads a CSV table from path
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

// Decode parses CSV from r
func Decode(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(t.Rows)+2, err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Write stores rows under header at path, creating parent directories
func Write(path string, header []string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := Encode(f, header, rows); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Encode writes header and rows as CSV to w
func Encode(w io.Writer, header []string, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			rec[i] = row[col]
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Has reports whether the table carries a column
func (t *Table) Has(col string) bool {
	for _, h := range t.Header {
		if strings.EqualFold(h, col) {
			return true
		}
	}
	return false
}

// WithColumns returns the header extended by any missing cols, in order
func (t *Table) WithColumns(cols ...string) []string {
	header := append([]string(nil), t.Header...)
	for _, c := range cols {
		if !t.Has(c) {
			header = append(header, c)
		}
	}
	return header
}

// Get returns the first non-blank value among candidate columns
func (r Row) Get(candidates ...string) string {
	for _, c := range candidates {
		if v := strings.TrimSpace(r[c]); v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a shallow copy of the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
