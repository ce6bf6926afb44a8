package main

import (
	"github.com/Bighabz/HorizonAI/internal/admin"
	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/Bighabz/HorizonAI/internal/prompt"
	"github.com/spf13/cobra"
)

func newClearCmd(a *app) *cobra.Command {
	var (
		f   uploadFlags
		all bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every row of a dataset's destination table",
		Long: `Empties the destination table of a dataset, or of every registered
dataset with --all, after confirmation. Use "upload --clear" to clear and
load in one run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			opts, err := a.serviceOptions(f)
			if err != nil {
				return err
			}
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			svc := core.NewService(store, nil, opts)

			var datasets []core.Dataset
			if all {
				datasets = core.All()
			} else {
				ds, err := a.dataset(f.dataset, "")
				if err != nil {
					return err
				}
				datasets = []core.Dataset{ds}
			}

			var targets []core.Target
			seen := make(map[string]bool)
			for _, ds := range datasets {
				t := svc.Target(ds)
				if seen[t.Table] {
					continue
				}
				seen[t.Table] = true
				targets = append(targets, t)
			}

			reset := &admin.Reset{Store: store, Confirm: prompt.New(a.yes).Confirm}
			return reset.Tables(ctx, targets)
		},
	}

	cmd.Flags().StringVarP(&f.dataset, "dataset", "d", "", "Dataset whose table is cleared")
	cmd.Flags().StringVar(&f.table, "table", "", "Destination table override")
	cmd.Flags().BoolVar(&all, "all", false, "Clear the tables of every registered dataset")
	return cmd
}
