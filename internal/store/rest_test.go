package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bighabz/HorizonAI/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskTarget = core.Target{
	Table:       "dcwf_tasks",
	Columns:     []string{"task_id", "task_name"},
	ConflictKey: "task_id",
	Mode:        core.WriteUpsert,
}

func TestREST_WriteUpsert(t *testing.T) {
	var got *http.Request
	var body []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewREST(srv.URL+"/rest/v1/", "secret", srv.Client())
	err := s.Write(context.Background(), taskTarget, []core.CanonicalRecord{
		{"task_id": "T1", "task_name": "Patch systems"},
		{"task_id": "T2", "task_name": "Scan network"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/rest/v1/dcwf_tasks", got.URL.Path)
	assert.Equal(t, "task_id", got.URL.Query().Get("on_conflict"))
	assert.Equal(t, "task_id,task_name", got.URL.Query().Get("columns"))
	assert.Equal(t, "secret", got.Header.Get("apikey"))
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "return=minimal,resolution=merge-duplicates", got.Header.Get("Prefer"))
	require.Len(t, body, 2)
	assert.Equal(t, "T2", body[1]["task_id"])
}

func TestREST_WriteInsert(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	target := taskTarget
	target.Mode = core.WriteInsert
	require.NoError(t, NewREST(srv.URL, "k", nil).Write(context.Background(), target, []core.CanonicalRecord{{"task_id": "T1"}}))

	assert.Empty(t, got.URL.Query().Get("on_conflict"))
	assert.Equal(t, "return=minimal", got.Header.Get("Prefer"))
}

func TestREST_WriteRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"duplicate key value violates unique constraint"}`, http.StatusConflict)
	}))
	defer srv.Close()

	err := NewREST(srv.URL, "k", srv.Client()).Write(context.Background(), taskTarget, []core.CanonicalRecord{{"task_id": "T1"}})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusConflict, se.Status)
	assert.Contains(t, err.Error(), "rest write: status 409")
	assert.Contains(t, err.Error(), "duplicate key")
	assert.Equal(t, "BAT002", core.MapError(err).Code)
}

func TestREST_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewREST(srv.URL, "k", srv.Client()).Write(ctx, taskTarget, []core.CanonicalRecord{{"task_id": "T1"}})

	var te *core.TransportError
	require.True(t, errors.As(err, &te), "error = %v", err)
	assert.True(t, te.Timeout)
	assert.True(t, core.IsTimeout(err))
}

func TestREST_ClearCountExists(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete:
			deleted = r.URL.RawQuery
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodHead:
			assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
			w.Header().Set("Content-Range", "0-24/3573")
			w.WriteHeader(http.StatusPartialContent)
		case r.URL.Path == "/missing":
			http.Error(w, `{"message":"relation \"public.missing\" does not exist"}`, http.StatusNotFound)
		case r.URL.Query().Get("limit") == "0":
			_, _ = w.Write([]byte("[]"))
		default:
			_, _ = w.Write([]byte(`[{"task_id":"T1"}]`))
		}
	}))
	defer srv.Close()

	s := NewREST(srv.URL, "k", srv.Client())
	ctx := context.Background()

	require.NoError(t, s.Clear(ctx, taskTarget))
	assert.Equal(t, "task_id=not.is.null", deleted)

	n, err := s.Count(ctx, "dcwf_tasks")
	require.NoError(t, err)
	assert.Equal(t, int64(3573), n)

	ok, err := s.Exists(ctx, "dcwf_tasks")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := s.Sample(ctx, "dcwf_tasks", 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "T1", rows[0]["task_id"])
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		header  string
		want    int64
		wantErr bool
	}{
		{"0-24/3573", 3573, false},
		{"*/0", 0, false},
		{"0-9/*", 0, true},
		{"", 0, true},
		{"0-9/abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := parseContentRange(tt.header)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExcerpt(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	got := excerpt(long)
	assert.Len(t, got, bodyExcerpt+3)
	assert.Equal(t, "ok", excerpt([]byte("  ok \n")))
}
