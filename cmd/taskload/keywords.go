package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/Bighabz/HorizonAI/internal/core/datasets"
	"github.com/Bighabz/HorizonAI/internal/prompt"
	"github.com/Bighabz/HorizonAI/internal/source"
	"github.com/spf13/cobra"
)

func newKeywordsCmd(a *app) *cobra.Command {
	var (
		dataset string
		sheet   string
		out     string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "keywords <file.csv|file.xlsx|sheets-url>",
		Short: "Build a task keyword index from a source",
		Long: `Normalizes the source like an upload would, then writes a JSON object
mapping every task id to its keywords, name and work role. Nothing is
written to the store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.dataset(dataset, "")
			if err != nil {
				return err
			}

			term := prompt.New(a.yes)
			src, err := source.Open(cmd.Context(), args[0], a.sourceOptions(term, sheet, ds.Info.Sheet))
			if err != nil {
				return err
			}

			prepared, err := core.Prepare(src, ds)
			if err != nil {
				return err
			}

			opts := datasets.KeywordOptions(ds.Info.Key)
			if limit > 0 {
				opts.Limit = limit
			}
			index := core.BuildKeywordIndex(prepared.Records, opts)

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := encodeJSON(w, index); err != nil {
				return err
			}

			slog.Info("keyword index built", "tasks", len(index), "skipped", len(prepared.Skipped), "out", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "Dataset used to read the source")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Workbook sheet to read")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "Output file (- for stdout)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Keywords per task (default depends on dataset)")
	return cmd
}
