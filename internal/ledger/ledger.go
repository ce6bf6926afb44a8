// Package ledger records upload runs in a local SQLite file so failed
// batches can be listed and retried later.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Bighabz/HorizonAI/internal/core"
	_ "github.com/mattn/go-sqlite3"
)

// Run statuses.
const (
	StatusComplete  = "complete"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusDeclined  = "declined"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when no run matches an id or id prefix.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	retry_of      TEXT NOT NULL DEFAULT '',
	dataset       TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	table_name    TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	processed     INTEGER NOT NULL DEFAULT 0,
	records       INTEGER NOT NULL DEFAULT 0,
	succeeded     INTEGER NOT NULL DEFAULT 0,
	skipped       INTEGER NOT NULL DEFAULT 0,
	duplicates    INTEGER NOT NULL DEFAULT 0,
	batches       INTEGER NOT NULL DEFAULT 0,
	not_attempted TEXT NOT NULL DEFAULT '[]',
	cleared       INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	started_at    TEXT NOT NULL,
	duration_ms   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);

CREATE TABLE IF NOT EXISTS failed_batches (
	run_id     TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	number     INTEGER NOT NULL,
	offset_at  INTEGER NOT NULL,
	reason     TEXT NOT NULL,
	timeout    INTEGER NOT NULL DEFAULT 0,
	records    TEXT NOT NULL,
	PRIMARY KEY (run_id, number)
);

CREATE TABLE IF NOT EXISTS skipped_rows (
	run_id TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	line   INTEGER NOT NULL,
	reason TEXT NOT NULL
);
`

// Ledger is a SQLite-backed run history.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the ledger file at path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure ledger dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}

	return &Ledger{db: db, now: time.Now}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Status classifies a finished run.
func Status(r *core.UploadResult) string {
	switch {
	case r.Declined:
		return StatusDeclined
	case r.Cancelled:
		return StatusCancelled
	case r.Error != "":
		return StatusFailed
	case len(r.FailedBatches) > 0 || len(r.NotAttempted) > 0:
		return StatusPartial
	}
	return StatusComplete
}

// RecordRun stores a finished run with its failed batches and skipped rows.
func (l *Ledger) RecordRun(ctx context.Context, r *core.UploadResult) error {
	notAttempted, err := json.Marshal(nonNil(r.NotAttempted))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	started := l.now().UTC().Add(-r.Duration)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, retry_of, dataset, source, table_name, status, processed, records,
			succeeded, skipped, duplicates, batches, not_attempted, cleared, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.RetryOf, r.Dataset, r.Source, r.Table, Status(r), r.Processed, r.Records,
		r.Succeeded, r.SkippedCount(), r.Duplicates, r.Batches, string(notAttempted), r.Cleared, r.Error,
		started.Format(timeLayout), r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}

	for _, f := range r.FailedBatches {
		records, err := json.Marshal(f.Records)
		if err != nil {
			return fmt.Errorf("record run %s: batch %d: %w", r.RunID, f.Number, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failed_batches (run_id, number, offset_at, reason, timeout, records) VALUES (?, ?, ?, ?, ?, ?)`,
			r.RunID, f.Number, f.Offset, f.Reason, f.Timeout, string(records),
		); err != nil {
			return fmt.Errorf("record run %s: batch %d: %w", r.RunID, f.Number, err)
		}
	}

	for _, s := range r.Skipped {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO skipped_rows (run_id, line, reason) VALUES (?, ?, ?)`,
			r.RunID, s.Line, s.Reason,
		); err != nil {
			return fmt.Errorf("record run %s: skip: %w", r.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run %s: commit: %w", r.RunID, err)
	}
	return nil
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
