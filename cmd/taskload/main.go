// Command taskload loads task catalogues from spreadsheets into the task
// store in confirmed, fixed-size batches.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Bighabz/HorizonAI/internal/config"
	"github.com/Bighabz/HorizonAI/internal/core"
	_ "github.com/Bighabz/HorizonAI/internal/core/datasets" // Register all datasets
	"github.com/Bighabz/HorizonAI/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{}
	err := execute(ctx, a, newRootCmd(a))
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if msg := core.FormatError(err); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(1)
	}
}

// app carries settings shared by every command.
type app struct {
	envFile  string
	logLevel string
	yes      bool

	cfg     *config.Config
	closers []func()
}

// execute runs root and releases what its command opened, whether or not
// the command failed. Cobra skips post-run hooks after an error.
func execute(ctx context.Context, a *app, root *cobra.Command) error {
	defer a.close()
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskload",
		Short:         "Load DCWF task catalogues into the task store",
		Long:          "Reads task rows from CSV, XLSX or Google Sheets, normalizes them against a dataset schema and uploads them in confirmed batches.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", ".env", "Environment file to load (missing file is ignored)")
	pf.StringVar(&a.logLevel, "log-level", "", "Override LOG_LEVEL: debug, info, warn, error")
	pf.BoolVarP(&a.yes, "yes", "y", false, "Answer yes to every confirmation prompt")

	root.AddCommand(
		newUploadCmd(a),
		newRetryCmd(a),
		newHistoryCmd(a),
		newVerifyCmd(a),
		newClearCmd(a),
		newHealthCmd(a),
		newKeywordsCmd(a),
		newDatasetsCmd(a),
	)
	return root
}

// setup loads the environment file and configuration, then logging. Store
// credentials are checked later, only by commands that need the store.
func (a *app) setup() error {
	if a.envFile != "" {
		// Overload: values in the file win over the inherited environment.
		if err := godotenv.Overload(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.LoadLocal()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	a.cfg = cfg
	return nil
}

// requireStore validates the store settings left out of setup.
func (a *app) requireStore() error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

func (a *app) onClose(f func()) {
	a.closers = append(a.closers, f)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
