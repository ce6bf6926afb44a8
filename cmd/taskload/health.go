package main

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/Bighabz/HorizonAI/internal/config"
	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/Bighabz/HorizonAI/internal/health"
	"github.com/spf13/cobra"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check credentials, store connectivity and destination tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			probes := []health.Probe{health.EnvProbe(a.lookup, a.requiredVars()...)}
			probes = append(probes, a.storeProbes(ctx)...)
			if key := a.cfg.Probe.OpenAIKey; key != "" {
				client := &http.Client{Timeout: a.cfg.Probe.Timeout}
				probes = append(probes, health.OpenAIProbe(client, a.cfg.Probe.OpenAIURL, key))
			}

			report := health.Run(ctx, a.cfg.Probe.Timeout, probes)
			report.Write(cmd.OutOrStdout())
			if !report.OK() {
				return fmt.Errorf("%d health checks failed", report.Failed())
			}
			return nil
		},
	}
}

func (a *app) requiredVars() []string {
	if a.cfg.Store.Driver == config.DriverPostgres {
		return []string{"DATABASE_URL"}
	}
	return []string{"SUPABASE_URL", "SUPABASE_KEY"}
}

// lookup reads settings from the loaded configuration so alternate variable
// names count as set.
func (a *app) lookup(name string) string {
	switch name {
	case "SUPABASE_URL":
		return a.cfg.Store.SupabaseURL
	case "SUPABASE_KEY":
		return a.cfg.Store.SupabaseKey
	case "DATABASE_URL":
		return a.cfg.Database.URL
	}
	return ""
}

func (a *app) storeProbes(ctx context.Context) []health.Probe {
	name := a.cfg.Store.Driver + " store"

	store, err := a.connectStore(ctx)
	if err != nil {
		return []health.Probe{{
			Name:  name,
			Check: func(context.Context) (string, error) { return "", err },
		}}
	}

	probes := []health.Probe{health.PingProbe(name, store)}
	for _, table := range a.tables() {
		probes = append(probes, health.TableProbe(store, table))
	}
	return probes
}

// tables lists the distinct destination tables of every dataset.
func (a *app) tables() []string {
	if a.cfg.Store.Table != "" {
		return []string{a.cfg.Store.Table}
	}
	var tables []string
	for _, ds := range core.All() {
		if !slices.Contains(tables, ds.Info.Table) {
			tables = append(tables, ds.Info.Table)
		}
	}
	return tables
}
