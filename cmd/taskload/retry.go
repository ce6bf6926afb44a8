package main

import (
	"errors"
	"fmt"

	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/Bighabz/HorizonAI/internal/prompt"
	"github.com/spf13/cobra"
)

func newRetryCmd(a *app) *cobra.Command {
	var (
		f      uploadFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "retry <run-id>",
		Short: "Resubmit the failed batches of an earlier run",
		Long: `Loads the records of every failed batch of a recorded run and submits
them again as a new run. Run ids may be abbreviated to a unique prefix.

Batches that were never attempted are not stored; upload the source again
to load them (upsert makes this safe).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			l, err := a.openLedger()
			if err != nil {
				return err
			}
			if l == nil {
				return errors.New("retry needs the run ledger: set LEDGER_ENABLED=true")
			}

			run, err := l.Run(ctx, args[0])
			if err != nil {
				return err
			}
			failed, err := l.FailedBatches(ctx, run.ID)
			if err != nil {
				return err
			}
			if len(failed) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s has no failed batches\n", run.ID)
				return nil
			}

			if f.dataset == "" {
				f.dataset = run.Dataset
			}
			if f.table == "" {
				f.table = run.Table
			}
			ds, err := a.dataset(f.dataset, f.candidates)
			if err != nil {
				return err
			}
			opts, err := a.serviceOptions(f)
			if err != nil {
				return err
			}
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			term := prompt.New(a.yes)
			result, err := core.NewService(store, l, opts).Retry(ctx, core.RetryRequest{
				RunID:    run.ID,
				Dataset:  ds,
				Failed:   failed,
				Confirm:  term.Confirm,
				Progress: progressPrinter(term),
			})
			if result != nil {
				if rerr := writeReport(cmd.OutOrStdout(), result, asJSON); rerr != nil {
					return rerr
				}
			}
			if err != nil {
				return err
			}
			return incomplete(result, true)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.dataset, "dataset", "d", "", "Dataset override (default: the run's dataset)")
	fl.StringVar(&f.candidates, "candidates", "", "YAML file overriding column candidates")
	fl.StringVar(&f.table, "table", "", "Destination table override (default: the run's table)")
	fl.StringVar(&f.mode, "mode", "", "Write mode: upsert or insert")
	fl.IntVar(&f.batchSize, "batch-size", 0, "Records per batch")
	fl.DurationVar(&f.timeout, "timeout", 0, "Per-batch call timeout")
	fl.BoolVar(&f.continueOn, "continue-on-failure", false, "Keep uploading after a failed batch")
	fl.BoolVar(&asJSON, "json", false, "Print the run report as JSON")

	return cmd
}
