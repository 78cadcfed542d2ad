// Package apiclient talks JSON over HTTP to the upstream payments API with a
// per-attempt timeout and a bounded, linearly backed-off retry on transport
// failures.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultBaseURL       = "http://localhost:3001"
	DefaultTimeout       = 10 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
	DefaultHealthPath    = "/health"
)

var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paysync_upstream_requests_total",
		Help: "Upstream API attempts, labeled by outcome",
	}, []string{"method", "outcome"})

	upstreamRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paysync_upstream_retries_total",
		Help: "Upstream API attempts repeated after a transport failure",
	})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paysync_upstream_request_duration_seconds",
		Help:    "Latency distribution of upstream API attempts",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method"})
)

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	HealthPath    string
}

// TokenSource yields the bearer token to send, or "" for none.
type TokenSource interface {
	Token(ctx context.Context) string
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Client struct {
	cfg    Config
	http   *http.Client
	tokens TokenSource
	sleep  Sleeper
	logger *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }
func WithTokenSource(ts TokenSource) Option { return func(c *Client) { c.tokens = ts } }
func WithSleeper(s Sleeper) Option          { return func(c *Client) { c.sleep = s } }
func WithLogger(l *slog.Logger) Option      { return func(c *Client) { c.logger = l } }

func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	} else if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = DefaultHealthPath
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{},
		sleep:  sleepCtx,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type requestOptions struct {
	headers http.Header
	timeout time.Duration
}

type RequestOption func(*requestOptions)

// WithHeader overrides a default header for one request.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) { o.headers.Set(key, value) }
}

// WithTimeout overrides the per-attempt timeout for one request.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) { o.timeout = d }
}

func (c *Client) Get(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, endpoint, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, endpoint, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, endpoint, body, out, opts...)
}

func (c *Client) Patch(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPatch, endpoint, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, out, opts...)
}

// Healthy probes the health endpoint. It never returns an error.
func (c *Client) Healthy(ctx context.Context) bool {
	if err := c.Get(ctx, c.cfg.HealthPath, nil); err != nil {
		c.logger.Warn("API health check failed", "error", err)
		return false
	}
	return true
}

// URL joins endpoint to the base URL with exactly one slash.
func (c *Client) URL(endpoint string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}

// Do performs one logical request. Transport failures are retried up to
// RetryAttempts total attempts; HTTP error responses fail immediately.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any, opts ...RequestOption) error {
	ro := requestOptions{headers: make(http.Header), timeout: c.cfg.Timeout}
	for _, opt := range opts {
		opt(&ro)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return networkError(fmt.Errorf("encode request body: %w", err))
		}
	}

	url := c.URL(endpoint)
	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		if attempt > 1 {
			upstreamRetriesTotal.Inc()
			delay := c.cfg.RetryDelay * time.Duration(attempt-1)
			c.logger.Debug("retrying upstream request", "method", method, "url", url, "attempt", attempt, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return networkError(err)
			}
		}

		err := c.attempt(ctx, method, url, payload, out, ro)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return networkError(lastErr)
}

// attempt returns *APIError for anything that must not be retried and a
// plain error for transport failures.
func (c *Client) attempt(ctx context.Context, method, url string, payload []byte, out any, ro requestOptions) error {
	timer := prometheus.NewTimer(upstreamDuration.WithLabelValues(method))
	defer timer.ObserveDuration()

	attemptCtx, cancel := context.WithTimeout(ctx, ro.timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, url, reqBody)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues(method, "invalid").Inc()
		return networkError(err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for k, v := range ro.headers {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues(method, "transport_error").Inc()
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues(method, "transport_error").Inc()
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstreamRequestsTotal.WithLabelValues(method, "http_error").Inc()
		return responseError(resp.StatusCode, respBody)
	}
	upstreamRequestsTotal.WithLabelValues(method, "ok").Inc()

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return networkError(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
