package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func partialRun() *core.UploadResult {
	return &core.UploadResult{
		RunID:     "6f1c2a9e-8d1b-4c8e-9a51-0c1f3b2d4e5f",
		Dataset:   "dcwf_tasks",
		Source:    "tasks.csv",
		Table:     "dcwf_tasks",
		Processed: 5,
		Records:   4,
		Succeeded: 2,
		Skipped:   []core.RecordSkipped{{Line: 3, Reason: "missing task_id"}},
		Batches:   2,
		FailedBatches: []core.BatchFailure{{
			Number:  2,
			Offset:  2,
			Reason:  "batch 2 rejected (2 records): status 500",
			Records: []core.CanonicalRecord{{"task_id": "T3"}, {"task_id": "T4", "keywords": []string{"scan"}}},
		}},
		Duration: 1500 * time.Millisecond,
	}
}

func TestLedger_RecordAndRead(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	require.NoError(t, l.RecordRun(ctx, partialRun()))

	run, err := l.Run(ctx, "6f1c2a9e")
	require.NoError(t, err)
	assert.Equal(t, "6f1c2a9e-8d1b-4c8e-9a51-0c1f3b2d4e5f", run.ID)
	assert.Equal(t, StatusPartial, run.Status)
	assert.Equal(t, 5, run.Processed)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, run.FailedBatches)
	assert.Equal(t, []int{}, run.NotAttempted)
	assert.Equal(t, 1500*time.Millisecond, run.Duration)

	failed, err := l.FailedBatches(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Number)
	assert.Equal(t, 2, failed[0].Offset)
	require.Len(t, failed[0].Records, 2)
	assert.Equal(t, "T4", failed[0].Records[1].Text("task_id"))
	assert.Equal(t, []any{"scan"}, failed[0].Records[1]["keywords"])

	skipped, err := l.Skipped(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []core.RecordSkipped{{Line: 3, Reason: "missing task_id"}}, skipped)
}

func TestLedger_RunsNewestFirst(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{
		"00000000-0000-4000-8000-000000000001",
		"00000000-0000-4000-8000-000000000002",
		"00000000-0000-4000-8000-000000000003",
	} {
		at := base.Add(time.Duration(i) * time.Minute)
		l.now = func() time.Time { return at }
		require.NoError(t, l.RecordRun(ctx, &core.UploadResult{RunID: id, Dataset: "dcwf_tasks"}))
	}

	runs, err := l.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "00000000-0000-4000-8000-000000000003", runs[0].ID)
	assert.Equal(t, "00000000-0000-4000-8000-000000000002", runs[1].ID)
	assert.Equal(t, StatusComplete, runs[0].Status)
	assert.True(t, runs[0].StartedAt.Equal(base.Add(2*time.Minute)))

	all, err := l.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = l.Run(ctx, "00000000")
	assert.ErrorContains(t, err, "ambiguous")
}

func TestLedger_RunNotFound(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	_, err := l.Run(ctx, "deadbeef")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = l.FailedBatches(ctx, "6f1c2a9e-8d1b-4c8e-9a51-0c1f3b2d4e5f")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.Equal(t, "RUN003", core.MapError(err).Code)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		r    core.UploadResult
		want string
	}{
		{"complete", core.UploadResult{}, StatusComplete},
		{"failed batch", core.UploadResult{FailedBatches: []core.BatchFailure{{Number: 1}}}, StatusPartial},
		{"not attempted", core.UploadResult{NotAttempted: []int{2}}, StatusPartial},
		{"cancelled", core.UploadResult{Cancelled: true, Error: "upload cancelled"}, StatusCancelled},
		{"declined", core.UploadResult{Declined: true, Error: "upload declined"}, StatusDeclined},
		{"error", core.UploadResult{Error: "schema mismatch"}, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(&tt.r))
		})
	}
}

func TestLedger_DuplicateRunID(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	require.NoError(t, l.RecordRun(ctx, partialRun()))
	assert.Error(t, l.RecordRun(ctx, partialRun()))

	runs, err := l.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "failed insert must not leave partial rows")
}
