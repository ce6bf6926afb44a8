package core

import (
	"context"
	"time"
)

// RawRow is one data row of a tabular source, keyed by column label.
// Values are strings, numbers or nil; a label missing from Values is absent.
type RawRow struct {
	Line   int // 1-based line (or sheet row) in the source
	Values map[string]any
}

// Get returns the cell for label.
func (r RawRow) Get(label string) (any, bool) {
	v, ok := r.Values[label]
	return v, ok
}

// TabularSource is anything that can list its column labels and rows.
type TabularSource interface {
	Labels() []string
	Rows() []RawRow
}

// CanonicalRecord is a normalized record ready for upload. Resolved fields
// hold strings; derived fields may hold []string.
type CanonicalRecord map[string]any

// Text returns the string value stored under key, or "".
func (r CanonicalRecord) Text(key string) string {
	s, _ := r[key].(string)
	return s
}

// Clone returns a shallow copy of the record.
func (r CanonicalRecord) Clone() CanonicalRecord {
	out := make(CanonicalRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ColumnMapping maps canonical keys to the source labels that feed them.
type ColumnMapping map[string]string

// FieldSpec describes one canonical field of a dataset.
type FieldSpec struct {
	Key        string              // Canonical key, also the destination column
	Candidates []string            // Accepted source labels, in priority order
	Required   bool                // Row is skipped when the value is empty
	Default    string              // Value for unresolved or empty optional fields
	Fallback   string              // Key whose value is used when this one is empty
	MaxLen     int                 // Truncate to this many characters (0 = unlimited)
	Normalizer func(string) string // Optional transform after trimming
}

// DerivedField computes a value from an already normalized record.
type DerivedField struct {
	Key    string
	Derive func(CanonicalRecord) any
}

// RowFilter rejects normalized records that do not belong in a dataset.
// It returns a non-empty reason for rejected records.
type RowFilter func(CanonicalRecord) string

// DatasetInfo identifies a dataset and its destination.
type DatasetInfo struct {
	Key         string // Registry key: "dcwf_tasks"
	Label       string // Display name
	Table       string // Destination collection
	ConflictKey string // Unique key used for dedup and upsert
	Sheet       string // Preferred workbook sheet, if any
}

// Dataset is a destination schema: how source rows become records.
type Dataset struct {
	Info    DatasetInfo
	Fields  []FieldSpec
	Derived []DerivedField
	Filter  RowFilter
}

// Columns returns the destination columns in schema order.
func (d Dataset) Columns() []string {
	cols := make([]string, 0, len(d.Fields)+len(d.Derived))
	for _, f := range d.Fields {
		cols = append(cols, f.Key)
	}
	for _, f := range d.Derived {
		cols = append(cols, f.Key)
	}
	return cols
}

// WithCandidates returns a copy of d whose candidate lists are replaced by
// the entries of table. Keys absent from table keep their lists.
func (d Dataset) WithCandidates(table map[string][]string) Dataset {
	if len(table) == 0 {
		return d
	}
	fields := make([]FieldSpec, len(d.Fields))
	for i, f := range d.Fields {
		if c, ok := table[f.Key]; ok && len(c) > 0 {
			f.Candidates = append([]string(nil), c...)
		}
		fields[i] = f
	}
	d.Fields = fields
	return d
}

// Store writes batches to and inspects a destination collection.
type Store interface {
	Write(ctx context.Context, target Target, records []CanonicalRecord) error
	Clear(ctx context.Context, target Target) error
	Count(ctx context.Context, table string) (int64, error)
}

// WriteMode selects how a store applies a batch.
type WriteMode string

const (
	WriteUpsert WriteMode = "upsert"
	WriteInsert WriteMode = "insert"
)

// Target describes where and how a batch is written.
type Target struct {
	Table       string
	Columns     []string
	ConflictKey string
	Mode        WriteMode
}

// UploadPhase indicates the current stage of a run.
type UploadPhase string

const (
	PhaseStarting    UploadPhase = "starting"
	PhaseResolving   UploadPhase = "resolving"
	PhaseNormalizing UploadPhase = "normalizing"
	PhaseConfirming  UploadPhase = "confirming"
	PhaseUploading   UploadPhase = "uploading"
	PhaseComplete    UploadPhase = "complete"
	PhaseFailed      UploadPhase = "failed"
	PhaseCancelled   UploadPhase = "cancelled"
)

// UploadProgress is the state of a run as seen by progress listeners.
type UploadProgress struct {
	RunID        string
	Dataset      string
	Phase        UploadPhase
	Records      int
	BatchesTotal int
	BatchesDone  int
	Succeeded    int
	Failed       int
}

// Percent returns batch progress as a percentage (0-100).
func (p UploadProgress) Percent() int {
	if p.BatchesTotal <= 0 {
		return 0
	}
	return p.BatchesDone * 100 / p.BatchesTotal
}

// ProgressCallback receives progress updates during a run.
type ProgressCallback func(UploadProgress)

// ConfirmFunc asks the operator to approve an action.
type ConfirmFunc func(prompt string) bool

// UploadResult is the final report of a run.
type UploadResult struct {
	RunID         string
	RetryOf       string // parent run id for retries
	Dataset       string
	Source        string
	Table         string
	Processed     int // rows read from the source
	Records       int // records left after skips and dedup
	Succeeded     int
	Skipped       []RecordSkipped
	Duplicates    int
	Batches       int
	FailedBatches []BatchFailure
	NotAttempted  []int
	Cleared       bool
	DryRun        bool
	Declined      bool
	Cancelled     bool
	Duration      time.Duration
	Error         string
}

// SkippedCount returns the number of skipped rows.
func (r UploadResult) SkippedCount() int {
	return len(r.Skipped)
}

// FailedBatchNumbers returns the 1-based numbers of failed batches.
func (r UploadResult) FailedBatchNumbers() []int {
	nums := make([]int, 0, len(r.FailedBatches))
	for _, f := range r.FailedBatches {
		nums = append(nums, f.Number)
	}
	return nums
}

// OK reports whether every record reached the store.
func (r UploadResult) OK() bool {
	return r.Error == "" && len(r.FailedBatches) == 0 && len(r.NotAttempted) == 0 && !r.Cancelled && !r.Declined
}
