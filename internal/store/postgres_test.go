package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	calls   []execCall
	batches [][]execCall
	err     error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, f.err
}

func (f *fakeDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return nil
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	var queued []execCall
	for _, q := range b.QueuedQueries {
		queued = append(queued, execCall{sql: q.SQL, args: q.Arguments})
	}
	f.batches = append(f.batches, queued)
	return &fakeBatchResults{err: f.err}
}

type fakeBatchResults struct {
	err    error
	closed bool
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, r.err }
func (r *fakeBatchResults) Query() (pgx.Rows, error)        { return nil, errors.New("not implemented") }
func (r *fakeBatchResults) QueryRow() pgx.Row                { return nil }
func (r *fakeBatchResults) Close() error                     { r.closed = true; return nil }

func manyTasks(n int) []core.CanonicalRecord {
	out := make([]core.CanonicalRecord, n)
	for i := range out {
		out[i] = core.CanonicalRecord{
			"task_id": fmt.Sprintf("T%05d", i+1), "task_name": "Patch", "work_role": "General",
			"task_description": "", "category": "General",
		}
	}
	return out
}

func TestBuildInsert_Upsert(t *testing.T) {
	sql, args := buildInsert(taskTarget, []core.CanonicalRecord{
		{"task_id": "T1", "task_name": "Patch"},
		{"task_id": "T2", "task_name": ""},
	})

	assert.Equal(t,
		`INSERT INTO "dcwf_tasks" ("task_id", "task_name") VALUES ($1, $2), ($3, $4)`+
			` ON CONFLICT ("task_id") DO UPDATE SET "task_name" = EXCLUDED."task_name"`,
		sql)
	require.Len(t, args, 4)
	assert.Equal(t, pgtype.Text{String: "T2", Valid: true}, args[2])
	assert.Equal(t, pgtype.Text{String: "", Valid: true}, args[3], "empty strings are stored, not NULL")
}

func TestBuildInsert_Variants(t *testing.T) {
	tests := []struct {
		name   string
		target core.Target
		want   string
	}{
		{
			name:   "insert mode has no conflict clause",
			target: core.Target{Table: "dcwf_tasks", Columns: []string{"task_id"}, ConflictKey: "task_id", Mode: core.WriteInsert},
			want:   `INSERT INTO "dcwf_tasks" ("task_id") VALUES ($1)`,
		},
		{
			name:   "key-only upsert does nothing on conflict",
			target: core.Target{Table: "dcwf_tasks", Columns: []string{"task_id"}, ConflictKey: "task_id", Mode: core.WriteUpsert},
			want:   `INSERT INTO "dcwf_tasks" ("task_id") VALUES ($1) ON CONFLICT ("task_id") DO NOTHING`,
		},
		{
			name:   "schema qualified table and columns from records",
			target: core.Target{Table: "public.tasks", Mode: core.WriteInsert},
			want:   `INSERT INTO "public"."tasks" ("task_id") VALUES ($1)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _ := buildInsert(tt.target, []core.CanonicalRecord{{"task_id": "T1"}})
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestPgValue(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, pgValue(nil))
	assert.Equal(t, []string{"analyst"}, pgValue([]string{"analyst"}))
	assert.Equal(t, pgtype.Timestamptz{Time: now, Valid: true}, pgValue(now))
	assert.Equal(t, "42", pgValue(float64(42)))
}

func TestPostgres_Write(t *testing.T) {
	db := &fakeDB{}
	s := NewPostgres(db)

	require.NoError(t, s.Write(context.Background(), taskTarget, nil))
	assert.Empty(t, db.calls, "empty batch issues no statement")

	require.NoError(t, s.Write(context.Background(), taskTarget, []core.CanonicalRecord{{"task_id": "T1", "task_name": "x"}}))
	require.Len(t, db.calls, 1)
	assert.Len(t, db.calls[0].args, 2)

	require.NoError(t, s.Clear(context.Background(), taskTarget))
	assert.Equal(t, `DELETE FROM "dcwf_tasks"`, db.calls[1].sql)
}

func TestPostgres_WriteErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42P01", Message: `relation "dcwf_tasks" does not exist`}
	s := NewPostgres(&fakeDB{err: pgErr})

	err := s.Write(context.Background(), taskTarget, []core.CanonicalRecord{{"task_id": "T1"}})
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*pgconn.PgError))
	assert.Contains(t, err.Error(), "postgres write")
	assert.Equal(t, "TBL001", core.MapError(err).Code)

	s = NewPostgres(&fakeDB{err: context.DeadlineExceeded})
	err = s.Write(context.Background(), taskTarget, []core.CanonicalRecord{{"task_id": "T1"}})
	assert.True(t, core.IsTimeout(err))
}

func TestPostgres_PingWithoutPinger(t *testing.T) {
	assert.NoError(t, NewPostgres(&fakeDB{}).Ping(context.Background()))
}

func TestBuildInserts_BindParameterLimit(t *testing.T) {
	target := core.Target{
		Table:       "dcwf_tasks",
		Columns:     []string{"task_id", "task_name", "work_role", "task_description", "category"},
		ConflictKey: "task_id",
		Mode:        core.WriteUpsert,
	}
	records := manyTasks(20000)

	stmts := buildInserts(target, records)
	require.Len(t, stmts, 2, "100000 arguments need two statements")

	total := 0
	for _, st := range stmts {
		assert.LessOrEqual(t, len(st.args), maxParams)
		assert.Contains(t, st.sql, `ON CONFLICT ("task_id") DO UPDATE`)
		total += len(st.args)
	}
	assert.Equal(t, len(records)*len(target.Columns), total)

	first := maxParams / len(target.Columns)
	assert.Equal(t, pgtype.Text{String: records[first].Text("task_id"), Valid: true}, stmts[1].args[0])

	assert.Len(t, buildInserts(target, records[:first]), 1)
}

func TestPostgres_WriteLargeBatch(t *testing.T) {
	target := core.Target{Table: "dcwf_tasks", Columns: []string{"task_id", "task_name"}, ConflictKey: "task_id"}
	records := manyTasks(40000)

	db := &fakeDB{}
	require.NoError(t, NewPostgres(db).Write(context.Background(), target, records))
	assert.Empty(t, db.calls, "a split batch is sent as one pgx batch")
	require.Len(t, db.batches, 1)
	assert.Len(t, db.batches[0], 2)

	db = &fakeDB{err: &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}}
	err := NewPostgres(db).Write(context.Background(), target, records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 1/2")
	assert.Equal(t, "BAT002", core.MapError(err).Code)
}
