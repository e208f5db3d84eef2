// Package ledger records install runs in a local sqlite database so the
// history of a product root can be audited later.
package ledger

import (
	"database/sql"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aurigasurvey/toolkit/src/common/errors"
	"github.com/aurigasurvey/toolkit/src/common/paths"
)

// Status values for a ledger record
const (
	StatusStarted   = "started"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusDryRun    = "dry-run"
)

// Record is one install attempt
type Record struct {
	ID         string
	Product    string
	Version    string
	URL        string
	BuildType  string
	InstallDir string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Ledger wraps the sqlite database holding install history
type Ledger struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS installs (
	id          TEXT PRIMARY KEY,
	product     TEXT NOT NULL,
	version     TEXT NOT NULL,
	url         TEXT NOT NULL DEFAULT '',
	build_type  TEXT NOT NULL DEFAULT '',
	install_dir TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_installs_product ON installs(product, version);
`

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := paths.EnsureDirPath(filepath.Dir(path)); err != nil {
		return nil, errors.Wrap(err, errors.DomainLedger, errors.CodeInternal,
			errors.ExitFailure, "Cannot create ledger directory")
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, errors.DomainLedger, errors.CodeUnavailable,
			errors.ExitFailure, "Cannot open install ledger")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.DomainLedger, errors.CodeInternal,
			errors.ExitFailure, "Cannot initialize install ledger")
	}
	return &Ledger{db: db}, nil
}

// Close closes the underlying database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Begin inserts a new record in the started state.
func (l *Ledger) Begin(r Record) error {
	_, err := l.db.Exec(
		`INSERT INTO installs (id, product, version, url, build_type, install_dir, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Product, r.Version, r.URL, r.BuildType, r.InstallDir, StatusStarted, r.StartedAt.UTC())
	if err != nil {
		return errors.Wrap(err, errors.DomainLedger, errors.CodeInternal,
			errors.ExitFailure, "Cannot record install start")
	}
	return nil
}

// Finish marks a record with its final status and fills in run details
// discovered during the pipeline.
func (l *Ledger) Finish(id, status, url, buildType, installDir string) error {
	_, err := l.db.Exec(
		`UPDATE installs SET status = ?, url = ?, build_type = ?, install_dir = ?, finished_at = ?
		 WHERE id = ?`,
		status, url, buildType, installDir, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, errors.DomainLedger, errors.CodeInternal,
			errors.ExitFailure, "Cannot record install result")
	}
	return nil
}

// List returns the most recent records, newest first.
func (l *Ledger) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(
		`SELECT id, product, version, url, build_type, install_dir, status, started_at,
		        COALESCE(finished_at, started_at)
		 FROM installs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.DomainLedger, errors.CodeInternal,
			errors.ExitFailure, "Cannot query install ledger")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Product, &r.Version, &r.URL, &r.BuildType,
			&r.InstallDir, &r.Status, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, errors.Wrap(err, errors.DomainLedger, errors.CodeInternal,
				errors.ExitFailure, "Cannot read install ledger row")
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
