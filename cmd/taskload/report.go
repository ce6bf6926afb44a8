package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/Bighabz/HorizonAI/internal/ledger"
)

// maxListed caps skipped rows and failures printed in text reports.
const maxListed = 20

type batchReport struct {
	Number  int    `json:"number"`
	Records int    `json:"records"`
	Reason  string `json:"reason"`
	Timeout bool   `json:"timeout,omitempty"`
}

type skipReport struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type runReport struct {
	RunID         string        `json:"run_id"`
	RetryOf       string        `json:"retry_of,omitempty"`
	Status        string        `json:"status"`
	Dataset       string        `json:"dataset"`
	Source        string        `json:"source"`
	Table         string        `json:"table,omitempty"`
	Processed     int           `json:"processed"`
	Records       int           `json:"records"`
	Succeeded     int           `json:"succeeded"`
	Skipped       []skipReport  `json:"skipped"`
	Duplicates    int           `json:"duplicates"`
	Batches       int           `json:"batches"`
	FailedBatches []batchReport `json:"failed_batches"`
	NotAttempted  []int         `json:"not_attempted"`
	Cleared       bool          `json:"cleared"`
	DryRun        bool          `json:"dry_run"`
	Duration      string        `json:"duration"`
	Error         string        `json:"error,omitempty"`
}

func newRunReport(r *core.UploadResult) runReport {
	rep := runReport{
		RunID:         r.RunID,
		RetryOf:       r.RetryOf,
		Status:        ledger.Status(r),
		Dataset:       r.Dataset,
		Source:        r.Source,
		Table:         r.Table,
		Processed:     r.Processed,
		Records:       r.Records,
		Succeeded:     r.Succeeded,
		Skipped:       make([]skipReport, 0, len(r.Skipped)),
		Duplicates:    r.Duplicates,
		Batches:       r.Batches,
		FailedBatches: make([]batchReport, 0, len(r.FailedBatches)),
		NotAttempted:  r.NotAttempted,
		Cleared:       r.Cleared,
		DryRun:        r.DryRun,
		Duration:      r.Duration.Round(time.Millisecond).String(),
		Error:         r.Error,
	}
	if rep.NotAttempted == nil {
		rep.NotAttempted = []int{}
	}
	if r.DryRun && r.Error == "" {
		rep.Status = "dry-run"
	}
	for _, s := range r.Skipped {
		rep.Skipped = append(rep.Skipped, skipReport{Line: s.Line, Reason: s.Reason})
	}
	for _, f := range r.FailedBatches {
		rep.FailedBatches = append(rep.FailedBatches, batchReport{
			Number:  f.Number,
			Records: len(f.Records),
			Reason:  f.Reason,
			Timeout: f.Timeout,
		})
	}
	return rep
}

// writeReport prints the final summary of a run.
func writeReport(w io.Writer, r *core.UploadResult, asJSON bool) error {
	rep := newRunReport(r)
	if asJSON {
		return encodeJSON(w, rep)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", rep.RunID)
	if rep.RetryOf != "" {
		fmt.Fprintf(tw, "Retry of\t%s\n", rep.RetryOf)
	}
	fmt.Fprintf(tw, "Status\t%s\n", rep.Status)
	fmt.Fprintf(tw, "Dataset\t%s\n", rep.Dataset)
	fmt.Fprintf(tw, "Source\t%s\n", rep.Source)
	if rep.Table != "" {
		fmt.Fprintf(tw, "Table\t%s\n", rep.Table)
	}
	fmt.Fprintf(tw, "Processed\t%d\n", rep.Processed)
	fmt.Fprintf(tw, "Records\t%d (%d skipped, %d duplicates)\n", rep.Records, len(rep.Skipped), rep.Duplicates)
	fmt.Fprintf(tw, "Batches\t%d (%d failed, %d not attempted)\n", rep.Batches, len(rep.FailedBatches), len(rep.NotAttempted))
	fmt.Fprintf(tw, "Succeeded\t%d\n", rep.Succeeded)
	if rep.Cleared {
		fmt.Fprintf(tw, "Cleared\tyes\n")
	}
	fmt.Fprintf(tw, "Duration\t%s\n", rep.Duration)
	if rep.Error != "" {
		fmt.Fprintf(tw, "Error\t%s\n", rep.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(rep.FailedBatches) > 0 {
		fmt.Fprintln(w, "\nFailed batches:")
		for i, f := range rep.FailedBatches {
			if i == maxListed {
				fmt.Fprintf(w, "  ... %d more\n", len(rep.FailedBatches)-maxListed)
				break
			}
			fmt.Fprintf(w, "  #%d (%d records): %s\n", f.Number, f.Records, f.Reason)
		}
	}
	if len(rep.NotAttempted) > 0 {
		fmt.Fprintf(w, "\nNot attempted: %s\n", joinInts(rep.NotAttempted))
	}
	if len(rep.Skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped rows:")
		for i, s := range rep.Skipped {
			if i == maxListed {
				fmt.Fprintf(w, "  ... %d more\n", len(rep.Skipped)-maxListed)
				break
			}
			fmt.Fprintf(w, "  line %d: %s\n", s.Line, s.Reason)
		}
	}
	return nil
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
