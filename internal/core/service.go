package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Bighabz/HorizonAI/internal/logging"
	"github.com/google/uuid"
)

// ErrUploadDeclined is returned when the confirm capability refuses a write.
var ErrUploadDeclined = errors.New("upload declined")

// RunRecorder persists finished runs, including failed batch slices.
type RunRecorder interface {
	RecordRun(ctx context.Context, result *UploadResult) error
}

// ServiceOptions configure a Service.
type ServiceOptions struct {
	Uploader UploaderOptions
	Mode     WriteMode
	Table    string // Overrides the dataset's destination table
}

// Service runs uploads: prepare, confirm, write in batches, record.
type Service struct {
	store  Store
	ledger RunRecorder
	opts   ServiceOptions
}

// NewService creates a Service writing to store. ledger may be nil.
func NewService(store Store, ledger RunRecorder, opts ServiceOptions) *Service {
	if opts.Mode == "" {
		opts.Mode = WriteUpsert
	}
	return &Service{store: store, ledger: ledger, opts: opts}
}

// UploadRequest describes one upload run.
type UploadRequest struct {
	Source     TabularSource
	SourceName string
	Dataset    Dataset
	Confirm    ConfirmFunc
	Clear      bool // delete every destination row before writing
	DryRun     bool
	Progress   ProgressCallback
}

// RetryRequest re-submits the failed batches of an earlier run.
type RetryRequest struct {
	RunID    string
	Dataset  Dataset
	Failed   []BatchFailure
	Confirm  ConfirmFunc
	Progress ProgressCallback
}

// Target returns where records of ds are written.
func (s *Service) Target(ds Dataset) Target {
	table := ds.Info.Table
	if s.opts.Table != "" {
		table = s.opts.Table
	}
	key := ds.Info.ConflictKey
	if key == "" {
		key = DefaultConflictKey
	}
	return Target{
		Table:       table,
		Columns:     ds.Columns(),
		ConflictKey: key,
		Mode:        s.opts.Mode,
	}
}

// Upload runs the full pipeline for one source. Batch failures do not
// produce an error; they are reported in the result. Errors are returned for
// schema mismatch, a declined confirmation, a failed clear and cancellation.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	run := s.newRun(ctx, req.Dataset, req.Progress)
	run.result.Source = req.SourceName
	run.result.DryRun = req.DryRun
	logger := logging.WithFields(run.ctx, "dataset", req.Dataset.Info.Key, "source", req.SourceName)

	run.phase(PhaseResolving)
	prepared, err := Prepare(req.Source, req.Dataset)
	if err != nil {
		logger.Error("column resolution failed", "error", err)
		return run.fail(err)
	}

	run.phase(PhaseNormalizing)
	run.result.Processed = prepared.Processed
	run.result.Records = len(prepared.Records)
	run.result.Skipped = prepared.Skipped
	run.result.Duplicates = prepared.Duplicates
	run.progress.Records = len(prepared.Records)
	logger.Info("rows normalized",
		"processed", prepared.Processed,
		"records", len(prepared.Records),
		"skipped", len(prepared.Skipped),
		"duplicates", prepared.Duplicates,
	)
	for _, sk := range prepared.Skipped {
		logger.Debug("row skipped", "line", sk.Line, "reason", sk.Reason)
	}

	if req.DryRun {
		run.result.Batches = len(Partition(prepared.Records, s.batchSize()))
		return run.complete()
	}

	return s.write(run, prepared.Records, req.Confirm, req.Clear)
}

// Retry re-submits the records of failed batches from an earlier run as a
// new run. Nothing is retried without an explicit call.
func (s *Service) Retry(ctx context.Context, req RetryRequest) (*UploadResult, error) {
	run := s.newRun(ctx, req.Dataset, req.Progress)
	run.result.Source = "retry:" + req.RunID
	run.result.RetryOf = req.RunID

	var records []CanonicalRecord
	for _, f := range req.Failed {
		records = append(records, f.Records...)
	}
	run.result.Processed = len(records)
	run.result.Records = len(records)
	run.progress.Records = len(records)

	logging.FromContext(run.ctx).Info("retrying failed batches",
		"parent_run", req.RunID,
		"batches", len(req.Failed),
		"records", len(records),
	)

	return s.write(run, records, req.Confirm, false)
}

func (s *Service) write(run *runState, records []CanonicalRecord, confirm ConfirmFunc, clear bool) (*UploadResult, error) {
	target := s.Target(run.dataset)
	run.result.Table = target.Table
	run.result.Batches = len(Partition(records, s.batchSize()))
	run.progress.BatchesTotal = run.result.Batches
	logger := logging.WithFields(run.ctx, "table", target.Table)

	if len(records) == 0 {
		logger.Info("nothing to upload")
		return run.complete()
	}

	run.phase(PhaseConfirming)
	prompt := fmt.Sprintf("Upload %d records to %q in %d batches (%s)?",
		len(records), target.Table, run.result.Batches, target.Mode)
	if confirm != nil && !confirm(prompt) {
		run.result.Declined = true
		return run.fail(ErrUploadDeclined)
	}

	if clear {
		if confirm != nil && !confirm(fmt.Sprintf("Delete every row of %q first?", target.Table)) {
			run.result.Declined = true
			return run.fail(ErrUploadDeclined)
		}
		if err := s.store.Clear(run.ctx, target); err != nil {
			logger.Error("clear failed", "error", err)
			return run.fail(fmt.Errorf("clear %s: %w", target.Table, err))
		}
		run.result.Cleared = true
		logger.Info("destination cleared")
	}

	run.phase(PhaseUploading)
	opts := s.opts.Uploader
	opts.OnBatch = func(p BatchProgress) {
		run.progress.BatchesDone = p.Number
		run.progress.Succeeded = p.Succeeded
		if !p.Accepted {
			run.progress.Failed++
		}
		run.notify()
	}

	submit := func(ctx context.Context, b Batch) error {
		return s.store.Write(ctx, target, b.Records)
	}
	sum := NewUploader(submit, opts).Run(run.ctx, records)

	run.result.Succeeded = sum.Succeeded
	run.result.FailedBatches = sum.Failed
	run.result.NotAttempted = sum.NotAttempted
	run.result.Cancelled = sum.Cancelled

	logger.Info("upload finished",
		"succeeded", sum.Succeeded,
		"attempted", sum.Attempted,
		"batches", sum.Batches,
		"failed_batches", len(sum.Failed),
		"not_attempted", len(sum.NotAttempted),
	)

	if sum.Cancelled {
		return run.fail(ErrUploadCancelled)
	}
	return run.complete()
}

func (s *Service) batchSize() int {
	if s.opts.Uploader.BatchSize > 0 {
		return s.opts.Uploader.BatchSize
	}
	return DefaultBatchSize
}

// runState carries one run through its phases.
type runState struct {
	svc      *Service
	ctx      context.Context
	dataset  Dataset
	started  time.Time
	result   *UploadResult
	progress UploadProgress
	callback ProgressCallback
}

func (s *Service) newRun(ctx context.Context, ds Dataset, cb ProgressCallback) *runState {
	id := uuid.New().String()
	r := &runState{
		svc:      s,
		ctx:      logging.WithRunID(ctx, id),
		dataset:  ds,
		started:  time.Now(),
		result:   &UploadResult{RunID: id, Dataset: ds.Info.Key},
		progress: UploadProgress{RunID: id, Dataset: ds.Info.Key},
		callback: cb,
	}
	r.phase(PhaseStarting)
	return r
}

func (r *runState) phase(p UploadPhase) {
	r.progress.Phase = p
	logging.FromContext(r.ctx).Info("phase changed", "phase", p, "dataset", r.dataset.Info.Key)
	r.notify()
}

func (r *runState) notify() {
	if r.callback != nil {
		r.callback(r.progress)
	}
}

func (r *runState) complete() (*UploadResult, error) {
	r.finish(PhaseComplete)
	return r.result, nil
}

func (r *runState) fail(err error) (*UploadResult, error) {
	r.result.Error = err.Error()
	if errors.Is(err, ErrUploadCancelled) {
		r.finish(PhaseCancelled)
	} else {
		r.finish(PhaseFailed)
	}
	return r.result, err
}

func (r *runState) finish(p UploadPhase) {
	r.result.Duration = time.Since(r.started)
	r.phase(p)

	if r.svc.ledger == nil || r.result.DryRun {
		return
	}
	// The run context may already be cancelled; the ledger write must still happen.
	if err := r.svc.ledger.RecordRun(context.WithoutCancel(r.ctx), r.result); err != nil {
		logging.FromContext(r.ctx).Warn("failed to record run", "error", err)
	}
}
