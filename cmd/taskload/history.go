package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Bighabz/HorizonAI/internal/ledger"
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or show one run in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			l, err := a.openLedger()
			if err != nil {
				return err
			}
			if l == nil {
				return errors.New("the run ledger is disabled: set LEDGER_ENABLED=true")
			}

			if len(args) == 0 {
				runs, err := l.Runs(ctx, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return encodeJSON(out, runs)
				}
				return writeRuns(out, runs)
			}

			run, err := l.Run(ctx, args[0])
			if err != nil {
				return err
			}
			failed, err := l.FailedBatches(ctx, run.ID)
			if err != nil {
				return err
			}
			skipped, err := l.Skipped(ctx, run.ID)
			if err != nil {
				return err
			}

			detail := runDetail{
				RunSummary:  run,
				FailedRows:  make([]batchReport, 0, len(failed)),
				SkippedRows: make([]skipReport, 0, len(skipped)),
			}
			for _, f := range failed {
				detail.FailedRows = append(detail.FailedRows, batchReport{Number: f.Number, Records: len(f.Records), Reason: f.Reason, Timeout: f.Timeout})
			}
			for _, s := range skipped {
				detail.SkippedRows = append(detail.SkippedRows, skipReport{Line: s.Line, Reason: s.Reason})
			}
			if asJSON {
				return encodeJSON(out, detail)
			}
			return writeDetail(out, detail)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

type runDetail struct {
	ledger.RunSummary
	FailedRows  []batchReport `json:"failed_batch_details"`
	SkippedRows []skipReport  `json:"skipped_rows"`
}

func writeRuns(w io.Writer, runs []ledger.RunSummary) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tDATASET\tSUCCEEDED\tFAILED\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), r.Status, r.Dataset,
			r.Succeeded, r.Records, r.FailedBatches, r.Source)
	}
	return tw.Flush()
}

func writeDetail(w io.Writer, d runDetail) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", d.ID)
	if d.RetryOf != "" {
		fmt.Fprintf(tw, "Retry of\t%s\n", d.RetryOf)
	}
	fmt.Fprintf(tw, "Started\t%s\n", d.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "Status\t%s\n", d.Status)
	fmt.Fprintf(tw, "Dataset\t%s\n", d.Dataset)
	fmt.Fprintf(tw, "Source\t%s\n", d.Source)
	fmt.Fprintf(tw, "Table\t%s\n", d.Table)
	fmt.Fprintf(tw, "Processed\t%d\n", d.Processed)
	fmt.Fprintf(tw, "Records\t%d (%d skipped, %d duplicates)\n", d.Records, d.Skipped, d.Duplicates)
	fmt.Fprintf(tw, "Batches\t%d (%d failed, %d not attempted)\n", d.Batches, d.FailedBatches, len(d.NotAttempted))
	fmt.Fprintf(tw, "Succeeded\t%d\n", d.Succeeded)
	fmt.Fprintf(tw, "Duration\t%s\n", d.Duration.Round(time.Millisecond))
	if d.Error != "" {
		fmt.Fprintf(tw, "Error\t%s\n", d.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, f := range d.FailedRows {
		fmt.Fprintf(w, "  batch #%d (%d records): %s\n", f.Number, f.Records, f.Reason)
	}
	for _, s := range d.SkippedRows {
		fmt.Fprintf(w, "  line %d skipped: %s\n", s.Line, s.Reason)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
