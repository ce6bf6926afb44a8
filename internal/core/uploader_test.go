package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func makeRecords(n int) []CanonicalRecord {
	out := make([]CanonicalRecord, n)
	for i := range out {
		out[i] = CanonicalRecord{"task_id": fmt.Sprintf("T%d", i+1), "task_name": "task"}
	}
	return out
}

// ============================================================================
// Partition Tests
// ============================================================================

func TestPartition(t *testing.T) {
	tests := []struct {
		n, size   int
		wantSizes []int
	}{
		{0, 50, nil},
		{1, 50, []int{1}},
		{50, 50, []int{50}},
		{51, 50, []int{50, 1}},
		{7, 3, []int{3, 3, 1}},
		{6, 3, []int{3, 3}},
		{5, 0, []int{5}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_by_%d", tt.n, tt.size), func(t *testing.T) {
			records := makeRecords(tt.n)
			batches := Partition(records, tt.size)

			var sizes []int
			var joined []CanonicalRecord
			for i, b := range batches {
				if b.Number != i+1 {
					t.Errorf("batch %d Number = %d", i, b.Number)
				}
				if b.Offset != len(joined) {
					t.Errorf("batch %d Offset = %d, want %d", i, b.Offset, len(joined))
				}
				sizes = append(sizes, len(b.Records))
				joined = append(joined, b.Records...)
			}

			if !reflect.DeepEqual(sizes, tt.wantSizes) {
				t.Errorf("sizes = %v, want %v", sizes, tt.wantSizes)
			}
			if len(joined) != len(records) {
				t.Fatalf("joined %d records, want %d", len(joined), len(records))
			}
			for i := range joined {
				if joined[i].Text("task_id") != records[i].Text("task_id") {
					t.Errorf("record %d out of order", i)
				}
			}
		})
	}
}

func TestPartition_BatchesDoNotShareCapacity(t *testing.T) {
	records := makeRecords(4)
	batches := Partition(records, 2)

	if c := cap(batches[0].Records); c != 2 {
		t.Errorf("cap(batch 1) = %d, want 2", c)
	}
	_ = append(batches[0].Records, CanonicalRecord{"task_id": "EXTRA"})

	if got := batches[1].Records[0].Text("task_id"); got != records[2].Text("task_id") {
		t.Errorf("appending to batch 1 changed batch 2: first task_id = %q", got)
	}
}

// ============================================================================
// Uploader Tests
// ============================================================================

type submitRecorder struct {
	calls  []int
	failOn map[int]error
}

func (s *submitRecorder) submit(_ context.Context, b Batch) error {
	s.calls = append(s.calls, b.Number)
	return s.failOn[b.Number]
}

func TestUploader_AllAccepted(t *testing.T) {
	rec := &submitRecorder{}
	var progress []BatchProgress
	up := NewUploader(rec.submit, UploaderOptions{
		BatchSize: 2,
		OnBatch:   func(p BatchProgress) { progress = append(progress, p) },
	})

	sum := up.Run(context.Background(), makeRecords(5))

	if sum.Batches != 3 || sum.Attempted != 3 || sum.Succeeded != 5 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Failed) != 0 || len(sum.NotAttempted) != 0 {
		t.Errorf("unexpected failures: %+v", sum)
	}
	if up.Succeeded() != 5 || up.Attempted() != 3 {
		t.Errorf("running totals = %d/%d, want 5/3", up.Succeeded(), up.Attempted())
	}
	wantRunning := []int{2, 4, 5}
	for i, p := range progress {
		if p.Succeeded != wantRunning[i] || p.Total != 3 || !p.Accepted {
			t.Errorf("progress[%d] = %+v", i, p)
		}
	}
}

func TestUploader_HaltsOnFirstFailure(t *testing.T) {
	rec := &submitRecorder{failOn: map[int]error{2: errors.New("status 500")}}
	up := NewUploader(rec.submit, UploaderOptions{BatchSize: 10})

	sum := up.Run(context.Background(), makeRecords(50))

	if !reflect.DeepEqual(rec.calls, []int{1, 2}) {
		t.Errorf("submit calls = %v, want [1 2]", rec.calls)
	}
	if len(sum.Failed) != 1 || sum.Failed[0].Number != 2 {
		t.Fatalf("Failed = %+v, want batch 2", sum.Failed)
	}
	if len(sum.Failed[0].Records) != 10 || sum.Failed[0].Offset != 10 {
		t.Errorf("failed slice = offset %d len %d", sum.Failed[0].Offset, len(sum.Failed[0].Records))
	}
	if !reflect.DeepEqual(sum.NotAttempted, []int{3, 4, 5}) {
		t.Errorf("NotAttempted = %v, want [3 4 5]", sum.NotAttempted)
	}
	if sum.Succeeded != 10 {
		t.Errorf("Succeeded = %d, want 10", sum.Succeeded)
	}
	if !strings.Contains(sum.Failed[0].Reason, "batch 2 rejected") || !strings.Contains(sum.Failed[0].Reason, "status 500") {
		t.Errorf("Reason = %q", sum.Failed[0].Reason)
	}
}

func TestUploader_ContinueOnFailure(t *testing.T) {
	rec := &submitRecorder{failOn: map[int]error{2: errors.New("status 500")}}
	up := NewUploader(rec.submit, UploaderOptions{BatchSize: 10, ContinueOnFailure: true})

	sum := up.Run(context.Background(), makeRecords(50))

	if !reflect.DeepEqual(rec.calls, []int{1, 2, 3, 4, 5}) {
		t.Errorf("submit calls = %v, want all five", rec.calls)
	}
	if len(sum.Failed) != 1 || sum.Failed[0].Number != 2 {
		t.Errorf("Failed = %+v, want batch 2 only", sum.Failed)
	}
	if sum.Succeeded != 40 {
		t.Errorf("Succeeded = %d, want 40", sum.Succeeded)
	}
	if len(sum.NotAttempted) != 0 {
		t.Errorf("NotAttempted = %v, want none", sum.NotAttempted)
	}
}

func TestUploader_TimeoutIsBatchFailure(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	var calls atomic.Int32
	submit := func(ctx context.Context, b Batch) error {
		calls.Add(1)
		if b.Number == 1 {
			<-block // ignores ctx on purpose
		}
		return nil
	}

	up := NewUploader(submit, UploaderOptions{BatchSize: 1, CallTimeout: 20 * time.Millisecond})
	sum := up.Run(context.Background(), makeRecords(3))

	if len(sum.Failed) != 1 || !sum.Failed[0].Timeout {
		t.Fatalf("Failed = %+v, want one timeout", sum.Failed)
	}
	if !reflect.DeepEqual(sum.NotAttempted, []int{2, 3}) {
		t.Errorf("NotAttempted = %v, want [2 3]", sum.NotAttempted)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestUploader_ContextDeadlineFromSubmit(t *testing.T) {
	submit := func(ctx context.Context, b Batch) error {
		<-ctx.Done()
		return fmt.Errorf("post: %w", ctx.Err())
	}

	up := NewUploader(submit, UploaderOptions{CallTimeout: 10 * time.Millisecond})
	sum := up.Run(context.Background(), makeRecords(1))

	if len(sum.Failed) != 1 || !sum.Failed[0].Timeout {
		t.Errorf("Failed = %+v, want timeout", sum.Failed)
	}
}

func TestUploader_CancelBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var seenErr error
	submit := func(callCtx context.Context, b Batch) error {
		if b.Number == 2 {
			cancel()
			seenErr = callCtx.Err()
		}
		return nil
	}

	up := NewUploader(submit, UploaderOptions{BatchSize: 1})
	sum := up.Run(ctx, makeRecords(4))

	if seenErr != nil {
		t.Errorf("in-flight call saw cancellation: %v", seenErr)
	}
	if !sum.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if sum.Succeeded != 2 || sum.Attempted != 2 {
		t.Errorf("Succeeded/Attempted = %d/%d, want 2/2", sum.Succeeded, sum.Attempted)
	}
	if !reflect.DeepEqual(sum.NotAttempted, []int{3, 4}) {
		t.Errorf("NotAttempted = %v, want [3 4]", sum.NotAttempted)
	}
}

func TestUploader_PanicInSubmit(t *testing.T) {
	submit := func(ctx context.Context, b Batch) error { panic("boom") }

	sum := NewUploader(submit, UploaderOptions{}).Run(context.Background(), makeRecords(1))

	if len(sum.Failed) != 1 {
		t.Fatalf("Failed = %+v, want one failure", sum.Failed)
	}
}

func TestUploader_Defaults(t *testing.T) {
	up := NewUploader(func(context.Context, Batch) error { return nil }, UploaderOptions{})
	if up.opts.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", up.opts.BatchSize, DefaultBatchSize)
	}
	if up.opts.CallTimeout != DefaultCallTimeout {
		t.Errorf("CallTimeout = %v, want %v", up.opts.CallTimeout, DefaultCallTimeout)
	}
	if up.opts.ContinueOnFailure {
		t.Error("default policy should halt on failure")
	}
}
