// Package diag probes the upstream payments API the way an operator would
// before pointing a dashboard at it.
package diag

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout = 5 * time.Second
	previewLen     = 200
)

type Endpoint struct {
	Path        string `json:"path"`
	Description string `json:"description"`
}

// DefaultEndpoints are the read-only routes every upstream deployment serves.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		{Path: "/health", Description: "Health Check"},
		{Path: "/api/status", Description: "API Status"},
		{Path: "/api/corridors", Description: "Corridors Endpoint"},
		{Path: "/debug/routes", Description: "Routes Debug"},
	}
}

type Result struct {
	Endpoint
	OK      bool          `json:"ok"`
	Status  int           `json:"status,omitempty"`
	Error   string        `json:"error,omitempty"`
	Preview string        `json:"preview,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Check issues one GET per endpoint. A result is OK for any status below 400.
func Check(ctx context.Context, hc *http.Client, baseURL string, endpoints []Endpoint, timeout time.Duration) []Result {
	if hc == nil {
		hc = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := strings.TrimRight(baseURL, "/")

	results := make([]Result, 0, len(endpoints))
	for _, ep := range endpoints {
		results = append(results, probe(ctx, hc, base+ep.Path, ep, timeout))
	}
	return results
}

func probe(ctx context.Context, hc *http.Client, url string, ep Endpoint, timeout time.Duration) (res Result) {
	res.Endpoint = ep
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			res.Error = "Timeout"
		} else {
			res.Error = err.Error()
		}
		return res
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, previewLen+1))
	res.Status = resp.StatusCode
	res.OK = resp.StatusCode < 400
	res.Preview = string(body)
	if len(res.Preview) > previewLen {
		res.Preview = res.Preview[:previewLen] + "..."
	}
	if !res.OK {
		res.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return res
}

// AllOK reports whether every probe passed.
func AllOK(results []Result) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}
