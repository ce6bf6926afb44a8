package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Pinger is anything with a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TableInspector reports on destination tables.
type TableInspector interface {
	Exists(ctx context.Context, table string) (bool, error)
	Count(ctx context.Context, table string) (int64, error)
}

// EnvProbe checks that every named variable is set.
func EnvProbe(lookup func(string) string, names ...string) Probe {
	return Probe{
		Name: "environment",
		Check: func(context.Context) (string, error) {
			var missing []string
			for _, n := range names {
				if strings.TrimSpace(lookup(n)) == "" {
					missing = append(missing, n)
				}
			}
			if len(missing) > 0 {
				return "", fmt.Errorf("missing %s", strings.Join(missing, ", "))
			}
			return fmt.Sprintf("%d variables set", len(names)), nil
		},
	}
}

// PingProbe wraps a Pinger.
func PingProbe(name string, p Pinger) Probe {
	return Probe{
		Name: name,
		Check: func(ctx context.Context) (string, error) {
			if err := p.Ping(ctx); err != nil {
				return "", err
			}
			return "reachable", nil
		},
	}
}

// TableProbe checks that table exists and reports its row count.
func TableProbe(t TableInspector, table string) Probe {
	return Probe{
		Name: "table " + table,
		Check: func(ctx context.Context) (string, error) {
			ok, err := t.Exists(ctx, table)
			if err != nil {
				return "", err
			}
			if !ok {
				return "", fmt.Errorf("table %s does not exist", table)
			}
			n, err := t.Count(ctx, table)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d rows", n), nil
		},
	}
}

// OpenAIProbe lists models with key to check the API key.
func OpenAIProbe(client *http.Client, url, key string) Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return Probe{
		Name: "openai",
		Check: func(ctx context.Context) (string, error) {
			if key == "" {
				return "", fmt.Errorf("OPENAI_API_KEY not set")
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return "", err
			}
			req.Header.Set("Authorization", "Bearer "+key)

			resp, err := client.Do(req)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("openai models: status %d", resp.StatusCode)
			}
			var body struct {
				Data []json.RawMessage `json:"data"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return "", fmt.Errorf("openai models: decode: %w", err)
			}
			return fmt.Sprintf("%d models", len(body.Data)), nil
		},
	}
}
