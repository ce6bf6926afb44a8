package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/spf13/cobra"
)

type fieldInfo struct {
	Key        string   `json:"key"`
	Required   bool     `json:"required"`
	Default    string   `json:"default,omitempty"`
	Candidates []string `json:"candidates"`
}

type datasetInfo struct {
	Key         string      `json:"key"`
	Label       string      `json:"label"`
	Table       string      `json:"table"`
	ConflictKey string      `json:"conflict_key"`
	Sheet       string      `json:"sheet,omitempty"`
	Fields      []fieldInfo `json:"fields"`
}

func newDatasetsCmd(a *app) *cobra.Command {
	var verbose, asJSON bool

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List the registered datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			table, err := a.candidateOverrides("")
			if err != nil {
				return err
			}

			var infos []datasetInfo
			for _, ds := range core.All() {
				ds = ds.WithCandidates(table)
				info := datasetInfo{
					Key:         ds.Info.Key,
					Label:       ds.Info.Label,
					Table:       ds.Info.Table,
					ConflictKey: ds.Info.ConflictKey,
					Sheet:       ds.Info.Sheet,
				}
				for _, f := range ds.Fields {
					info.Fields = append(info.Fields, fieldInfo{Key: f.Key, Required: f.Required, Default: f.Default, Candidates: f.Candidates})
				}
				infos = append(infos, info)
			}

			if asJSON {
				return encodeJSON(out, infos)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tTABLE\tCONFLICT KEY\tLABEL")
			for _, d := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Key, d.Table, d.ConflictKey, d.Label)
				if !verbose {
					continue
				}
				for _, f := range d.Fields {
					mark := " "
					if f.Required {
						mark = "*"
					}
					fmt.Fprintf(tw, "  %s %s\t%s\t\t\n", mark, f.Key, strings.Join(f.Candidates, " | "))
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show fields and column candidates")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
