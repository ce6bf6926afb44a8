// Package health runs connectivity probes against the configured services.
package health

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxParallel bounds concurrently running probes.
const maxParallel = 4

// Probe is one named check. Check returns a short detail on success.
type Probe struct {
	Name  string
	Check func(ctx context.Context) (string, error)
}

// Result is the outcome of one probe.
type Result struct {
	Name     string
	Detail   string
	Err      error
	Duration time.Duration
}

// OK reports whether the probe passed.
func (r Result) OK() bool { return r.Err == nil }

// Report holds probe results in the order the probes were given.
type Report struct {
	Results []Result
}

// OK reports whether every probe passed.
func (r Report) OK() bool { return r.Failed() == 0 }

// Failed counts failed probes.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// Run executes probes concurrently, each under its own timeout. A failing
// probe never stops the others.
func Run(ctx context.Context, timeout time.Duration, probes []Probe) Report {
	results := make([]Result, len(probes))

	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, p := range probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			detail, err := p.Check(pctx)
			results[i] = Result{Name: p.Name, Detail: detail, Err: err, Duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	return Report{Results: results}
}

// Write prints one line per probe and a summary line.
func (r Report) Write(w io.Writer) {
	for _, res := range r.Results {
		if res.OK() {
			fmt.Fprintf(w, "PASS  %-22s %s (%s)\n", res.Name, res.Detail, res.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(w, "FAIL  %-22s %v\n", res.Name, res.Err)
		}
	}
	fmt.Fprintf(w, "%d/%d checks passed\n", len(r.Results)-r.Failed(), len(r.Results))
}
