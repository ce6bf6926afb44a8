// Package admin provides destructive maintenance operations on the store.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/Bighabz/HorizonAI/internal/logging"
)

// ResetTimeout is the maximum duration for a reset operation.
const ResetTimeout = 30 * time.Second

// ErrResetDeclined is returned when the operator does not confirm a reset.
var ErrResetDeclined = errors.New("reset declined")

// Clearer deletes every row of a destination table.
type Clearer interface {
	Clear(ctx context.Context, target core.Target) error
}

// Reset empties destination tables.
type Reset struct {
	Store   Clearer
	Confirm core.ConfirmFunc
}

type resetFn func(ctx context.Context) error

// Tables deletes every row of each target, in order, after a single
// confirmation naming all of them. It stops at the first failure.
func (r *Reset) Tables(ctx context.Context, targets []core.Target) error {
	if len(targets) == 0 {
		return nil
	}

	names := make([]string, len(targets))
	resets := make([]resetFn, len(targets))
	for i, t := range targets {
		names[i] = t.Table
		resets[i] = func(ctx context.Context) error {
			if err := r.Store.Clear(ctx, t); err != nil {
				return fmt.Errorf("clear %s: %w", t.Table, err)
			}
			return nil
		}
	}

	question := fmt.Sprintf("Delete every row of %s? This cannot be undone.", strings.Join(names, ", "))
	if r.Confirm == nil || !r.Confirm(question) {
		return ErrResetDeclined
	}

	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	return runResets(ctx, names, resets)
}

func runResets(ctx context.Context, names []string, resets []resetFn) error {
	logger := logging.FromContext(ctx)
	for i, reset := range resets {
		if err := reset(ctx); err != nil {
			logger.Error("reset failed", "table", names[i], "error", err)
			return err
		}
		logger.Info("table reset", "table", names[i])
	}
	return nil
}
