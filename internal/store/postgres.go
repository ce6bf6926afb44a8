package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Bighabz/HorizonAI/internal/config"
	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

// maxParams is the bind parameter limit of the Postgres wire protocol.
const maxParams = 65535

// NewPool opens a connection pool from cfg.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pcfg.MaxConns = int32(cfg.MaxConns)
	pcfg.MinConns = int32(cfg.MinConns)
	pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, nil
}

// Postgres writes directly to a Postgres table.
type Postgres struct {
	db DBTX
}

// NewPostgres creates a Postgres store on db.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

// Write inserts records with multi-row statements. Upserts update every
// non-key column on conflict. A batch too large for one statement is split
// into several, sent together as one pgx batch so it still commits or fails
// as a whole.
func (s *Postgres) Write(ctx context.Context, target core.Target, records []core.CanonicalRecord) error {
	if len(records) == 0 {
		return nil
	}

	stmts := buildInserts(target, records)
	if len(stmts) == 1 {
		if _, err := s.db.Exec(ctx, stmts[0].sql, stmts[0].args...); err != nil {
			return classify("postgres write", err)
		}
		return nil
	}

	// Without explicit BEGIN/COMMIT a pgx batch runs in one implicit transaction.
	batch := &pgx.Batch{}
	for _, st := range stmts {
		batch.Queue(st.sql, st.args...)
	}
	br := s.db.SendBatch(ctx, batch)
	for i := range stmts {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return classify(fmt.Sprintf("postgres write (statement %d/%d)", i+1, len(stmts)), err)
		}
	}
	if err := br.Close(); err != nil {
		return classify("postgres write", err)
	}
	return nil
}

// Clear deletes every row of the target table.
func (s *Postgres) Clear(ctx context.Context, target core.Target) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM "+ident(target.Table)); err != nil {
		return classify("postgres clear", err)
	}
	return nil
}

// Count returns the number of rows in table.
func (s *Postgres) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM "+ident(table)).Scan(&n); err != nil {
		return 0, classify("postgres count", err)
	}
	return n, nil
}

// Sample returns up to limit rows of table.
func (s *Postgres) Sample(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	rows, err := s.db.Query(ctx, "SELECT * FROM "+ident(table)+" LIMIT $1", limit)
	if err != nil {
		return nil, classify("postgres sample", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, classify("postgres sample", err)
	}
	return out, nil
}

// Exists reports whether table is visible in the current schema search path.
func (s *Postgres) Exists(ctx context.Context, table string) (bool, error) {
	schema, name := splitTable(table)
	const q = `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_name = $1 AND table_schema = COALESCE(NULLIF($2, ''), current_schema())
	)`
	var ok bool
	if err := s.db.QueryRow(ctx, q, name, schema).Scan(&ok); err != nil {
		return false, classify("postgres exists", err)
	}
	return ok, nil
}

// Ping checks the connection when the underlying handle supports it.
func (s *Postgres) Ping(ctx context.Context) error {
	p, ok := s.db.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return classify("postgres ping", err)
	}
	return nil
}

type statement struct {
	sql  string
	args []any
}

// buildInserts splits records into statements of at most maxParams
// arguments each, all with the same column list.
func buildInserts(target core.Target, records []core.CanonicalRecord) []statement {
	cols := insertColumns(target, records)
	per := len(records)
	if len(cols) > 0 {
		per = max(1, maxParams/len(cols))
	}

	stmts := make([]statement, 0, (len(records)+per-1)/per)
	for off := 0; off < len(records); off += per {
		end := min(off+per, len(records))
		sql, args := insertSQL(target, cols, records[off:end])
		stmts = append(stmts, statement{sql: sql, args: args})
	}
	return stmts
}

// buildInsert renders one statement for all records.
func buildInsert(target core.Target, records []core.CanonicalRecord) (string, []any) {
	return insertSQL(target, insertColumns(target, records), records)
}

func insertColumns(target core.Target, records []core.CanonicalRecord) []string {
	if len(target.Columns) > 0 {
		return target.Columns
	}
	return recordColumns(records)
}

func insertSQL(target core.Target, cols []string, records []core.CanonicalRecord) (string, []any) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident(c)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ident(target.Table))
	b.WriteString(" (")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(cols)*len(records))
	for r, rec := range records {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c, col := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			args = append(args, pgValue(rec[col]))
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}

	if target.Mode != core.WriteInsert && target.ConflictKey != "" {
		b.WriteString(" ON CONFLICT (")
		b.WriteString(ident(target.ConflictKey))
		b.WriteString(")")

		var sets []string
		for i, c := range cols {
			if c != target.ConflictKey {
				sets = append(sets, quoted[i]+" = EXCLUDED."+quoted[i])
			}
		}
		if len(sets) == 0 {
			b.WriteString(" DO NOTHING")
		} else {
			b.WriteString(" DO UPDATE SET ")
			b.WriteString(strings.Join(sets, ", "))
		}
	}

	return b.String(), args
}

// pgValue converts a record value to a pgx argument. Strings are always
// valid text; empty strings are stored as such, not as NULL. Lists decoded
// from the run ledger arrive as []any.
func pgValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return pgtype.Text{String: x, Valid: true}
	case []string:
		return x
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			out[i] = core.CellText(e)
		}
		return out
	case time.Time:
		return pgtype.Timestamptz{Time: x, Valid: !x.IsZero()}
	default:
		return core.CellText(x)
	}
}

func recordColumns(records []core.CanonicalRecord) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	slices.Sort(cols)
	return cols
}

func splitTable(table string) (schema, name string) {
	if i := strings.IndexByte(table, '.'); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "", table
}

// ident quotes a possibly schema-qualified identifier.
func ident(name string) string {
	schema, table := splitTable(name)
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

// classify wraps connection-level failures as transport errors so the
// uploader reports them like any other rejected batch.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if pgconn.Timeout(err) || core.IsTimeout(err) {
		return &core.TransportError{Op: op, Timeout: true, Err: err}
	}
	if !errors.As(err, &pgErr) && pgconn.SafeToRetry(err) {
		return &core.TransportError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
