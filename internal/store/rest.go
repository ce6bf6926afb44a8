// Package store writes canonical records to a destination collection,
// either a PostgREST endpoint (Supabase) or Postgres directly.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Bighabz/HorizonAI/internal/core"
)

const bodyExcerpt = 300

// REST writes through a PostgREST API such as Supabase's /rest/v1.
type REST struct {
	endpoint string // .../rest/v1
	key      string
	client   *http.Client
}

// NewREST creates a REST store. endpoint is the /rest/v1 base URL. A nil
// client uses http.DefaultClient; call deadlines come from the context.
func NewREST(endpoint, key string, client *http.Client) *REST {
	if client == nil {
		client = http.DefaultClient
	}
	return &REST{endpoint: strings.TrimRight(endpoint, "/"), key: key, client: client}
}

// Write POSTs records as one JSON array. Upserts merge on the conflict key.
func (s *REST) Write(ctx context.Context, target core.Target, records []core.CanonicalRecord) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("rest write: encode: %w", err)
	}

	q := url.Values{}
	prefer := "return=minimal"
	if target.Mode != core.WriteInsert {
		q.Set("on_conflict", target.ConflictKey)
		prefer += ",resolution=merge-duplicates"
	}
	if len(target.Columns) > 0 {
		q.Set("columns", strings.Join(target.Columns, ","))
	}

	req, err := s.request(ctx, http.MethodPost, target.Table, q, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)

	_, err = s.do(req, "rest write")
	return err
}

// Clear deletes every row of the target table. PostgREST refuses an
// unfiltered DELETE, so the filter matches any non-null conflict key.
func (s *REST) Clear(ctx context.Context, target core.Target) error {
	q := url.Values{}
	q.Set(target.ConflictKey, "not.is.null")

	req, err := s.request(ctx, http.MethodDelete, target.Table, q, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	_, err = s.do(req, "rest clear")
	return err
}

// Count returns the exact row count of table from the Content-Range header.
func (s *REST) Count(ctx context.Context, table string) (int64, error) {
	q := url.Values{}
	q.Set("select", "*")
	req, err := s.request(ctx, http.MethodHead, table, q, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := s.do(req, "rest count")
	if err != nil {
		return 0, err
	}
	return parseContentRange(resp.Header.Get("Content-Range"))
}

// Sample returns up to limit rows of table.
func (s *REST) Sample(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("limit", strconv.Itoa(limit))
	req, err := s.request(ctx, http.MethodGet, table, q, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.do(req, "rest sample")
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return nil, fmt.Errorf("rest sample: decode: %w", err)
	}
	return rows, nil
}

// Exists reports whether table is exposed by the API.
func (s *REST) Exists(ctx context.Context, table string) (bool, error) {
	q := url.Values{}
	q.Set("limit", "0")
	req, err := s.request(ctx, http.MethodGet, table, q, nil)
	if err != nil {
		return false, err
	}

	_, err = s.do(req, "rest exists")
	var se *StatusError
	if errors.As(err, &se) && (se.Status == http.StatusNotFound || strings.Contains(se.Body, "does not exist")) {
		return false, nil
	}
	return err == nil, err
}

// Ping checks that the API root answers with the configured key.
func (s *REST) Ping(ctx context.Context) error {
	req, err := s.request(ctx, http.MethodGet, "", nil, nil)
	if err != nil {
		return err
	}
	_, err = s.do(req, "rest ping")
	return err
}

func (s *REST) request(ctx context.Context, method, table string, q url.Values, body io.Reader) (*http.Request, error) {
	u := s.endpoint + "/" + url.PathEscape(table)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("rest request: %w", err)
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	return req, nil
}

type response struct {
	Header http.Header
	Body   []byte
}

func (s *REST) do(req *http.Request, op string) (*response, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &core.TransportError{Op: op, Timeout: core.IsTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.TransportError{Op: op, Timeout: core.IsTimeout(err), Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusPartialContent:
		return &response{Header: resp.Header, Body: body}, nil
	}
	return nil, fmt.Errorf("%s: %w", op, &StatusError{Status: resp.StatusCode, Body: excerpt(body)})
}

// StatusError is a non-success HTTP response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if r := []rune(s); len(r) > bodyExcerpt {
		return string(r[:bodyExcerpt]) + "..."
	}
	return s
}

// parseContentRange reads the total from "0-24/3573" or "*/0".
func parseContentRange(h string) (int64, error) {
	i := strings.LastIndexByte(h, '/')
	if i < 0 || h[i+1:] == "*" {
		return 0, fmt.Errorf("rest count: no total in Content-Range %q", h)
	}
	n, err := strconv.ParseInt(h[i+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("rest count: bad Content-Range %q: %w", h, err)
	}
	return n, nil
}
