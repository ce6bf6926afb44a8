package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/google/uuid"
)

// RunSummary is one row of the run history.
type RunSummary struct {
	ID            string        `json:"id"`
	RetryOf       string        `json:"retry_of,omitempty"`
	Dataset       string        `json:"dataset"`
	Source        string        `json:"source"`
	Table         string        `json:"table"`
	Status        string        `json:"status"`
	Processed     int           `json:"processed"`
	Records       int           `json:"records"`
	Succeeded     int           `json:"succeeded"`
	Skipped       int           `json:"skipped"`
	Duplicates    int           `json:"duplicates"`
	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failed_batches"`
	NotAttempted  []int         `json:"not_attempted"`
	Cleared       bool          `json:"cleared"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
}

const runColumns = `r.id, r.retry_of, r.dataset, r.source, r.table_name, r.status, r.processed, r.records,
	r.succeeded, r.skipped, r.duplicates, r.batches,
	(SELECT count(*) FROM failed_batches f WHERE f.run_id = r.id),
	r.not_attempted, r.cleared, r.error, r.started_at, r.duration_ms`

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		s, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Run returns one run by full id or unique id prefix.
func (l *Ledger) Run(ctx context.Context, id string) (RunSummary, error) {
	full, err := l.resolve(ctx, id)
	if err != nil {
		return RunSummary{}, err
	}
	row := l.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, full)
	s, err := scanRun(row)
	if err != nil {
		return RunSummary{}, fmt.Errorf("read run %s: %w", full, err)
	}
	return s, nil
}

// FailedBatches returns the failed batches of a run with their records.
func (l *Ledger) FailedBatches(ctx context.Context, id string) ([]core.BatchFailure, error) {
	full, err := l.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT number, offset_at, reason, timeout, records FROM failed_batches WHERE run_id = ? ORDER BY number`, full)
	if err != nil {
		return nil, fmt.Errorf("read failed batches: %w", err)
	}
	defer rows.Close()

	var out []core.BatchFailure
	for rows.Next() {
		var f core.BatchFailure
		var raw string
		if err := rows.Scan(&f.Number, &f.Offset, &f.Reason, &f.Timeout, &raw); err != nil {
			return nil, fmt.Errorf("read failed batches: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &f.Records); err != nil {
			return nil, fmt.Errorf("decode batch %d: %w", f.Number, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Skipped returns the rows a run skipped during normalization.
func (l *Ledger) Skipped(ctx context.Context, id string) ([]core.RecordSkipped, error) {
	full, err := l.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT line, reason FROM skipped_rows WHERE run_id = ? ORDER BY line`, full)
	if err != nil {
		return nil, fmt.Errorf("read skipped rows: %w", err)
	}
	defer rows.Close()

	var out []core.RecordSkipped
	for rows.Next() {
		var s core.RecordSkipped
		if err := rows.Scan(&s.Line, &s.Reason); err != nil {
			return nil, fmt.Errorf("read skipped rows: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// resolve expands an id prefix to a full run id.
func (l *Ledger) resolve(ctx context.Context, id string) (string, error) {
	if _, err := uuid.Parse(id); err == nil {
		var n int
		if err := l.db.QueryRowContext(ctx, `SELECT count(*) FROM runs WHERE id = ?`, id).Scan(&n); err != nil {
			return "", fmt.Errorf("find run: %w", err)
		}
		if n == 0 {
			return "", fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return id, nil
	}

	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	rows, err := l.db.QueryContext(ctx, `SELECT id FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(id), id)
	if err != nil {
		return "", fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return "", fmt.Errorf("find run: %w", err)
		}
		ids = append(ids, s)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("find run: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("run id prefix %q is ambiguous", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunSummary, error) {
	var r RunSummary
	var notAttempted, started string
	var durationMS int64
	err := s.Scan(&r.ID, &r.RetryOf, &r.Dataset, &r.Source, &r.Table, &r.Status, &r.Processed, &r.Records,
		&r.Succeeded, &r.Skipped, &r.Duplicates, &r.Batches, &r.FailedBatches,
		&notAttempted, &r.Cleared, &r.Error, &started, &durationMS)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrRunNotFound
	}
	if err != nil {
		return r, err
	}

	if err := json.Unmarshal([]byte(notAttempted), &r.NotAttempted); err != nil {
		return r, fmt.Errorf("decode not_attempted: %w", err)
	}
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return r, fmt.Errorf("decode started_at: %w", err)
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return r, nil
}
