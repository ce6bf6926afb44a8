package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrUploadCancelled is returned when a run stops on context cancellation
// between batches.
var ErrUploadCancelled = errors.New("upload cancelled")

// SchemaMismatchError reports a required canonical key with no matching
// source column.
type SchemaMismatchError struct {
	Key        string   // Missing canonical key
	Candidates []string // Labels that would have satisfied it
	Labels     []string // Labels present in the source
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: no column matches %s (tried %s); columns seen: %s",
		e.Key, quoteList(e.Candidates), quoteList(e.Labels))
}

// RecordSkipped describes a row excluded during normalization.
type RecordSkipped struct {
	Line   int
	Reason string
}

func (e *RecordSkipped) Error() string {
	return fmt.Sprintf("row %d skipped: %s", e.Line, e.Reason)
}

// BatchRejected reports a batch the store did not accept.
type BatchRejected struct {
	Number int // 1-based batch number
	Size   int
	Err    error
}

func (e *BatchRejected) Error() string {
	return fmt.Sprintf("batch %d rejected (%d records): %v", e.Number, e.Size, e.Err)
}

func (e *BatchRejected) Unwrap() error { return e.Err }

// TransportError is a submit failure below the store protocol: a timeout,
// a refused connection or a broken response.
type TransportError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: transport timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a transport timeout or a deadline.
func IsTimeout(err error) bool {
	var te *TransportError
	if errors.As(err, &te) && te.Timeout {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func quoteList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
