package main

import (
	"fmt"

	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/Bighabz/HorizonAI/internal/prompt"
	"github.com/Bighabz/HorizonAI/internal/source"
	"github.com/spf13/cobra"
)

func newUploadCmd(a *app) *cobra.Command {
	var (
		f      uploadFlags
		sheet  string
		wipe   bool
		dryRun bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file.csv|file.xlsx|sheets-url>",
		Short: "Upload a task source into the store",
		Long: `Resolves the source columns against the dataset, normalizes and
deduplicates rows, asks for confirmation and writes the records in batches.

Failed batches are kept in the run ledger; use "taskload retry <run-id>" to
submit them again.`,
		Example: `  taskload upload tasks.csv
  taskload upload --dataset dcwf_master "DCWF Master.xlsx"
  taskload upload --dry-run https://docs.google.com/spreadsheets/d/<id>/edit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ds, err := a.dataset(f.dataset, f.candidates)
			if err != nil {
				return err
			}
			opts, err := a.serviceOptions(f)
			if err != nil {
				return err
			}

			term := prompt.New(a.yes)
			src, err := source.Open(ctx, args[0], a.sourceOptions(term, sheet, ds.Info.Sheet))
			if err != nil {
				return err
			}

			var store core.Store
			var runs core.RunRecorder
			if !dryRun {
				s, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				l, err := a.openLedger()
				if err != nil {
					return err
				}
				store, runs = s, recorder(l)
			}

			svc := core.NewService(store, runs, opts)
			result, err := svc.Upload(ctx, core.UploadRequest{
				Source:     src,
				SourceName: src.Name,
				Dataset:    ds,
				Confirm:    term.Confirm,
				Clear:      wipe,
				DryRun:     dryRun,
				Progress:   progressPrinter(term),
			})
			if result != nil {
				if rerr := writeReport(cmd.OutOrStdout(), result, asJSON); rerr != nil {
					return rerr
				}
			}
			if err != nil {
				return err
			}
			return incomplete(result, runs != nil)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.dataset, "dataset", "d", "", "Dataset to load (default from UPLOAD_DATASET)")
	fl.StringVar(&f.candidates, "candidates", "", "YAML file overriding column candidates")
	fl.StringVar(&f.table, "table", "", "Destination table override")
	fl.StringVar(&f.mode, "mode", "", "Write mode: upsert or insert")
	fl.IntVar(&f.batchSize, "batch-size", 0, "Records per batch (default from UPLOAD_BATCH_SIZE)")
	fl.DurationVar(&f.timeout, "timeout", 0, "Per-batch call timeout")
	fl.BoolVar(&f.continueOn, "continue-on-failure", false, "Keep uploading after a failed batch")
	fl.StringVar(&sheet, "sheet", "", "Workbook sheet to read")
	fl.BoolVar(&wipe, "clear", false, "Delete every destination row before writing (asks twice)")
	fl.BoolVar(&dryRun, "dry-run", false, "Resolve and normalize only; write nothing")
	fl.BoolVar(&asJSON, "json", false, "Print the run report as JSON")

	return cmd
}

// incomplete turns failed or unattempted batches into a non-zero exit.
func incomplete(r *core.UploadResult, recorded bool) error {
	if r.OK() {
		return nil
	}
	err := fmt.Errorf("%d batches rejected, %d not attempted", len(r.FailedBatches), len(r.NotAttempted))
	if recorded && len(r.FailedBatches) > 0 {
		return fmt.Errorf("%w: run \"taskload retry %s\" to resubmit", err, r.RunID)
	}
	return err
}
