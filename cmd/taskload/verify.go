package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		dataset string
		table   string
		sample  int
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the destination table exists and show sample rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if table == "" {
				table = a.cfg.Store.Table
			}
			if table == "" {
				ds, err := a.dataset(dataset, "")
				if err != nil {
					return err
				}
				table = ds.Info.Table
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			exists, err := store.Exists(ctx, table)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("table %s does not exist", table)
			}

			count, err := store.Count(ctx, table)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "table %s: %d rows\n", table, count)

			if sample <= 0 || count == 0 {
				return nil
			}
			rows, err := store.Sample(ctx, table, sample)
			if err != nil {
				return err
			}
			return encodeJSON(out, rows)
		},
	}

	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "Dataset whose table is checked")
	cmd.Flags().StringVar(&table, "table", "", "Table to check (overrides --dataset)")
	cmd.Flags().IntVar(&sample, "sample", 3, "Number of sample rows to print")
	return cmd
}
