package health

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTables struct {
	exists map[string]bool
	count  int64
	err    error
}

func (f fakeTables) Exists(_ context.Context, table string) (bool, error) {
	return f.exists[table], f.err
}

func (f fakeTables) Count(context.Context, string) (int64, error) {
	return f.count, nil
}

type pingFunc func(context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

func TestRun_AllProbesRunAndKeepOrder(t *testing.T) {
	probes := []Probe{
		{Name: "slow", Check: func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}},
		{Name: "fails", Check: func(context.Context) (string, error) { return "", errors.New("boom") }},
		{Name: "passes", Check: func(context.Context) (string, error) { return "fine", nil }},
	}

	report := Run(context.Background(), 20*time.Millisecond, probes)

	require.Len(t, report.Results, 3)
	assert.Equal(t, "slow", report.Results[0].Name)
	assert.ErrorIs(t, report.Results[0].Err, context.DeadlineExceeded)
	assert.EqualError(t, report.Results[1].Err, "boom")
	assert.True(t, report.Results[2].OK())
	assert.Equal(t, 2, report.Failed())
	assert.False(t, report.OK())

	var buf bytes.Buffer
	report.Write(&buf)
	out := buf.String()
	assert.Contains(t, out, "FAIL  fails")
	assert.Contains(t, out, "PASS  passes")
	assert.Contains(t, out, "1/3 checks passed")
}

func TestEnvProbe(t *testing.T) {
	env := map[string]string{"SUPABASE_URL": "https://x.supabase.co", "SUPABASE_KEY": " "}
	p := EnvProbe(func(k string) string { return env[k] }, "SUPABASE_URL", "SUPABASE_KEY", "OPENAI_API_KEY")

	_, err := p.Check(context.Background())
	require.Error(t, err)
	assert.Equal(t, "missing SUPABASE_KEY, OPENAI_API_KEY", err.Error())

	env["SUPABASE_KEY"] = "k"
	env["OPENAI_API_KEY"] = "sk"
	detail, err := p.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3 variables set", detail)
}

func TestTableProbe(t *testing.T) {
	ok := TableProbe(fakeTables{exists: map[string]bool{"dcwf_tasks": true}, count: 42}, "dcwf_tasks")
	detail, err := ok.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42 rows", detail)
	assert.Equal(t, "table dcwf_tasks", ok.Name)

	_, err = TableProbe(fakeTables{}, "missing").Check(context.Background())
	assert.ErrorContains(t, err, "does not exist")
}

func TestPingProbe(t *testing.T) {
	_, err := PingProbe("postgres", pingFunc(func(context.Context) error { return errors.New("refused") })).Check(context.Background())
	assert.EqualError(t, err, "refused")
}

func TestOpenAIProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`))
	}))
	defer srv.Close()

	detail, err := OpenAIProbe(srv.Client(), srv.URL, "sk-good").Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2 models", detail)

	_, err = OpenAIProbe(srv.Client(), srv.URL, "sk-bad").Check(context.Background())
	assert.ErrorContains(t, err, "status 401")

	_, err = OpenAIProbe(nil, srv.URL, "").Check(context.Background())
	assert.True(t, err != nil && strings.Contains(err.Error(), "OPENAI_API_KEY"))
}
