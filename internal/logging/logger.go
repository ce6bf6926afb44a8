// Package logging configures log/slog for the task loader and carries the
// run id through context so every entry of one upload run can be correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey struct{}

// Setup configures the global slog logger. Output goes to stderr so that
// stdout stays free for command output.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	SetupWriter(os.Stderr, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRunID returns a context carrying the upload run id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, contextKey{}, runID)
}

// RunID returns the run id stored in ctx, or "".
func RunID(ctx context.Context) string {
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}

// FromContext returns the default logger, enriched with run_id when the
// context carries one.
//
//	logger := logging.FromContext(ctx)
//	logger.Info("batch submitted", "batch", n)
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if id := RunID(ctx); id != "" {
		logger = logger.With("run_id", id)
	}

	return logger
}

// WithFields returns a context logger with additional structured fields.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
