package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromContext_RunID(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json")

	ctx := WithRunID(context.Background(), "run-42")
	WithFields(ctx, "dataset", "dcwf_tasks").Info("upload started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["run_id"] != "run-42" {
		t.Errorf("run_id = %v, want run-42", entry["run_id"])
	}
	if entry["dataset"] != "dcwf_tasks" {
		t.Errorf("dataset = %v, want dcwf_tasks", entry["dataset"])
	}
}

func TestFromContext_NoRunID(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupWriter(&buf, "debug", "text")

	FromContext(context.Background()).Debug("probe")

	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("unexpected run_id in %q", buf.String())
	}
	if RunID(context.Background()) != "" {
		t.Error("RunID() on empty context should be empty")
	}
}
