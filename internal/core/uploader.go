package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Bighabz/HorizonAI/internal/logging"
)

const (
	DefaultBatchSize   = 50
	DefaultCallTimeout = 10 * time.Second
)

// Batch is a contiguous slice of the record sequence.
type Batch struct {
	Number  int // 1-based position in the run
	Offset  int // index of the first record in the full sequence
	Records []CanonicalRecord
}

// SubmitFunc writes one batch. A nil error means the whole batch was accepted.
type SubmitFunc func(ctx context.Context, batch Batch) error

// BatchFailure records a batch that was attempted and not accepted.
type BatchFailure struct {
	Number  int
	Offset  int
	Reason  string
	Timeout bool
	Records []CanonicalRecord
}

// BatchProgress is reported after every attempted batch.
type BatchProgress struct {
	Number    int
	Total     int
	Accepted  bool
	Succeeded int // running total of accepted records
}

// UploaderOptions configure an Uploader. Zero values select the defaults:
// 50 records per batch, halt on the first failure, 10s per call.
type UploaderOptions struct {
	BatchSize         int
	ContinueOnFailure bool
	CallTimeout       time.Duration
	OnBatch           func(BatchProgress)
}

// Summary is the outcome of one Uploader.Run.
type Summary struct {
	Records      int
	Succeeded    int
	Batches      int
	Attempted    int
	Failed       []BatchFailure
	NotAttempted []int
	Cancelled    bool
}

// Uploader submits records in fixed-size batches, one at a time, in order.
// It holds no transport of its own; every write goes through submit.
type Uploader struct {
	submit SubmitFunc
	opts   UploaderOptions

	succeeded int
	attempted int
}

// NewUploader returns an uploader that writes through submit.
func NewUploader(submit SubmitFunc, opts UploaderOptions) *Uploader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Uploader{submit: submit, opts: opts}
}

// Succeeded returns the running count of accepted records.
func (u *Uploader) Succeeded() int { return u.succeeded }

// Attempted returns the running count of submitted batches.
func (u *Uploader) Attempted() int { return u.attempted }

// Partition splits records into contiguous batches of at most size records.
func Partition(records []CanonicalRecord, size int) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([]Batch, 0, (len(records)+size-1)/size)
	for off := 0; off < len(records); off += size {
		end := min(off+size, len(records))
		batches = append(batches, Batch{
			Number:  len(batches) + 1,
			Offset:  off,
			Records: records[off:end:end],
		})
	}
	return batches
}

// Run partitions records and submits each batch in order. Cancellation of
// ctx is honoured between batches only; an in-flight call is bounded by the
// per-call timeout instead.
func (u *Uploader) Run(ctx context.Context, records []CanonicalRecord) Summary {
	batches := Partition(records, u.opts.BatchSize)
	sum := Summary{Records: len(records), Batches: len(batches)}
	logger := logging.FromContext(ctx)

	for i, b := range batches {
		if ctx.Err() != nil {
			sum.Cancelled = true
			sum.NotAttempted = batchNumbers(batches[i:])
			logger.Warn("upload cancelled", "next_batch", b.Number, "succeeded", u.succeeded)
			break
		}

		err := u.call(ctx, b)
		u.attempted++
		sum.Attempted++

		if err == nil {
			u.succeeded += len(b.Records)
			sum.Succeeded += len(b.Records)
			logger.Debug("batch accepted", "batch", b.Number, "size", len(b.Records))
			u.notify(b.Number, len(batches), true)
			continue
		}

		sum.Failed = append(sum.Failed, BatchFailure{
			Number:  b.Number,
			Offset:  b.Offset,
			Reason:  err.Error(),
			Timeout: IsTimeout(err),
			Records: b.Records,
		})
		logger.Warn("batch failed", "batch", b.Number, "size", len(b.Records), "error", err)
		u.notify(b.Number, len(batches), false)

		if !u.opts.ContinueOnFailure {
			sum.NotAttempted = batchNumbers(batches[i+1:])
			break
		}
	}

	return sum
}

// call runs submit under the per-call timeout. The call context does not
// inherit cancellation from ctx, only its values.
func (u *Uploader) call(ctx context.Context, b Batch) error {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.opts.CallTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("submit panic: %v", r)
			}
		}()
		done <- u.submit(callCtx, b)
	}()

	var err error
	select {
	case err = <-done:
		if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !IsTimeout(err) {
			err = &TransportError{Op: "submit", Timeout: true, Err: err}
		}
	case <-callCtx.Done():
		err = &TransportError{Op: "submit", Timeout: true, Err: callCtx.Err()}
	}

	if err == nil {
		return nil
	}
	return &BatchRejected{Number: b.Number, Size: len(b.Records), Err: err}
}

func (u *Uploader) notify(number, total int, accepted bool) {
	if u.opts.OnBatch == nil {
		return
	}
	u.opts.OnBatch(BatchProgress{
		Number:    number,
		Total:     total,
		Accepted:  accepted,
		Succeeded: u.succeeded,
	})
}

func batchNumbers(batches []Batch) []int {
	if len(batches) == 0 {
		return nil
	}
	nums := make([]int, len(batches))
	for i, b := range batches {
		nums[i] = b.Number
	}
	return nums
}
