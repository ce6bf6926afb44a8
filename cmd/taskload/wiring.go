package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Bighabz/HorizonAI/internal/config"
	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/Bighabz/HorizonAI/internal/ledger"
	"github.com/Bighabz/HorizonAI/internal/prompt"
	"github.com/Bighabz/HorizonAI/internal/source"
	"github.com/Bighabz/HorizonAI/internal/store"
)

// inspectStore is a core.Store that can also be queried for verification.
type inspectStore interface {
	core.Store
	Exists(ctx context.Context, table string) (bool, error)
	Sample(ctx context.Context, table string, limit int) ([]map[string]any, error)
	Ping(ctx context.Context) error
}

// dataset looks up a registered dataset and applies the candidate table
// file, if one is configured.
func (a *app) dataset(key, candidates string) (core.Dataset, error) {
	if key == "" {
		key = a.cfg.Upload.Dataset
	}
	ds, err := core.Lookup(key)
	if err != nil {
		return core.Dataset{}, err
	}

	table, err := a.candidateOverrides(candidates)
	if err != nil {
		return core.Dataset{}, err
	}
	return ds.WithCandidates(table), nil
}

// candidateOverrides loads path, or the configured candidate table file.
func (a *app) candidateOverrides(path string) (config.CandidateTable, error) {
	if path == "" {
		path = a.cfg.Upload.CandidateTable
	}
	return config.LoadCandidateTable(path)
}

// openStore validates the store settings and connects the configured driver.
func (a *app) openStore(ctx context.Context) (inspectStore, error) {
	if err := a.requireStore(); err != nil {
		return nil, err
	}
	return a.connectStore(ctx)
}

func (a *app) connectStore(ctx context.Context) (inspectStore, error) {
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := store.NewPool(ctx, a.cfg.Database)
		if err != nil {
			return nil, err
		}
		a.onClose(pool.Close)
		slog.Debug("store opened", "driver", config.DriverPostgres)
		return store.NewPostgres(pool), nil
	default:
		endpoint := a.cfg.Store.RESTEndpoint()
		slog.Debug("store opened", "driver", config.DriverREST, "endpoint", endpoint)
		return store.NewREST(endpoint, a.cfg.Store.SupabaseKey, &http.Client{}), nil
	}
}

// openLedger opens the run ledger. It returns nil when the ledger is disabled.
func (a *app) openLedger() (*ledger.Ledger, error) {
	if !a.cfg.Ledger.Enabled {
		return nil, nil
	}
	l, err := ledger.Open(a.cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	a.onClose(func() {
		if err := l.Close(); err != nil {
			slog.Warn("failed to close ledger", "error", err)
		}
	})
	return l, nil
}

// recorder adapts an optional ledger to core.RunRecorder.
func recorder(l *ledger.Ledger) core.RunRecorder {
	if l == nil {
		return nil
	}
	return l
}

// uploadFlags are the per-invocation overrides of the upload policy.
type uploadFlags struct {
	dataset    string
	candidates string
	table      string
	mode       string
	batchSize  int
	timeout    time.Duration
	continueOn bool
}

func (a *app) serviceOptions(f uploadFlags) (core.ServiceOptions, error) {
	up := a.cfg.Upload
	if f.batchSize > 0 {
		up.BatchSize = f.batchSize
	}
	if f.mode != "" {
		up.WriteMode = f.mode
	}
	if up.WriteMode != config.ModeUpsert && up.WriteMode != config.ModeInsert {
		return core.ServiceOptions{}, fmt.Errorf("config validation: --mode %q must be upsert or insert", up.WriteMode)
	}

	timeout := up.CallTimeout()
	if f.timeout > 0 {
		timeout = f.timeout
	}

	table := a.cfg.Store.Table
	if f.table != "" {
		table = f.table
	}

	return core.ServiceOptions{
		Uploader: core.UploaderOptions{
			BatchSize:         up.BatchSize,
			ContinueOnFailure: f.continueOn || !up.HaltOnBatchFailure,
			CallTimeout:       timeout,
		},
		Mode:  core.WriteMode(up.WriteMode),
		Table: table,
	}, nil
}

func (a *app) sourceOptions(term *prompt.Terminal, sheet, preferred string) source.Options {
	opts := source.Options{Sheet: sheet, Preferred: preferred}
	// Without a terminal the first sheet is read.
	if term.Interactive {
		opts.Choose = func(sheets []string) (string, error) {
			return term.Choose("Select a sheet:", sheets)
		}
	}
	if creds := a.cfg.Sheets.CredentialsFile; creds != "" {
		opts.Sheets = func(ctx context.Context) (*http.Client, error) {
			return source.Authorize(ctx, creds, a.cfg.Sheets.TokenFile)
		}
	}
	return opts
}

// progressPrinter reports batch progress on the prompt stream.
func progressPrinter(term *prompt.Terminal) core.ProgressCallback {
	return func(p core.UploadProgress) {
		if p.Phase != core.PhaseUploading || p.BatchesDone == 0 {
			return
		}
		fmt.Fprintf(term.Out, "batch %d/%d (%d%%) succeeded %d failed %d\n",
			p.BatchesDone, p.BatchesTotal, p.Percent(), p.Succeeded, p.Failed)
	}
}
