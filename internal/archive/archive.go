// Package archive keeps a SQLite history of every published opportunity.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pfrederiksen/comment-map/internal/opportunity"

	_ "modernc.org/sqlite"
)

// Archive is a SQLite-backed history of published opportunities
type Archive struct {
	db *sql.DB
}

// Open opens or creates the archive at path and migrates its schema
func Open(ctx context.Context, path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	// modernc sqlite takes pragmas in the DSN
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating archive: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the database
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS opportunities (
  agency TEXT NOT NULL,
  project_id TEXT NOT NULL,
  title TEXT NOT NULL,
  status TEXT NOT NULL,
  comment_start_date TEXT NOT NULL DEFAULT '',
  comment_end_date TEXT NOT NULL DEFAULT '',
  source_url TEXT NOT NULL DEFAULT '',
  first_seen TEXT NOT NULL,
  last_seen TEXT NOT NULL,
  UNIQUE(agency, project_id)
);`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  published_at TEXT NOT NULL,
  total INTEGER NOT NULL,
  inserted INTEGER NOT NULL,
  updated INTEGER NOT NULL
);`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordResult counts what a publish did to the archive
type RecordResult struct {
	Inserted int
	Updated  int
}

// Record upserts opps as seen at time at and logs the run. New rows get
// first_seen = at; existing rows keep first_seen and move last_seen.
func (a *Archive) Record(ctx context.Context, opps []*opportunity.Opportunity, at time.Time) (RecordResult, error) {
	var res RecordResult
	seen := at.UTC().Format(time.RFC3339)

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, o := range opps {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM opportunities WHERE agency = ? AND project_id = ? LIMIT 1;`,
			string(o.Agency), o.ProjectID,
		).Scan(&exists)
		switch {
		case err == sql.ErrNoRows:
			res.Inserted++
		case err != nil:
			return res, fmt.Errorf("checking %s: %w", o.Key(), err)
		default:
			res.Updated++
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO opportunities(agency, project_id, title, status, comment_start_date, comment_end_date, source_url, first_seen, last_seen)
VALUES(?,?,?,?,?,?,?,?,?)
ON CONFLICT(agency, project_id) DO UPDATE SET
  title = excluded.title,
  status = excluded.status,
  comment_start_date = excluded.comment_start_date,
  comment_end_date = excluded.comment_end_date,
  source_url = excluded.source_url,
  last_seen = excluded.last_seen;
`,
			string(o.Agency), o.ProjectID, o.Title, string(o.Status),
			opportunity.FormatDate(o.CommentStart), opportunity.FormatDate(o.CommentEnd),
			o.SourceURL, seen, seen,
		); err != nil {
			return res, fmt.Errorf("upserting %s: %w", o.Key(), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs(published_at, total, inserted, updated) VALUES(?,?,?,?);`,
		seen, len(opps), res.Inserted, res.Updated,
	); err != nil {
		return res, fmt.Errorf("logging run: %w", err)
	}

	return res, tx.Commit()
}

// Entry is one archived opportunity
type Entry struct {
	Agency    string
	ProjectID string
	Title     string
	Status    string
	Start     string
	End       string
	FirstSeen time.Time
	LastSeen  time.Time
}

// Get returns the archived entry for (agency, projectID), or nil
func (a *Archive) Get(ctx context.Context, agency opportunity.Agency, projectID string) (*Entry, error) {
	var e Entry
	var first, last string
	err := a.db.QueryRowContext(ctx, `
SELECT agency, project_id, title, status, comment_start_date, comment_end_date, first_seen, last_seen
FROM opportunities WHERE agency = ? AND project_id = ? LIMIT 1;`,
		string(agency), projectID,
	).Scan(&e.Agency, &e.ProjectID, &e.Title, &e.Status, &e.Start, &e.End, &first, &last)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.FirstSeen, _ = time.Parse(time.RFC3339, first)
	e.LastSeen, _ = time.Parse(time.RFC3339, last)
	return &e, nil
}

// Runs returns the number of recorded publishes
func (a *Archive) Runs(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs;`).Scan(&n)
	return n, err
}
