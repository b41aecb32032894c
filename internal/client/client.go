// Package client implements the shared retrying HTTP client the upstream
// gateways are built on. Every failure it surfaces is one of three kinds:
// timeout, transport, or upstream status (non-2xx with a captured body).
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wxtrends/trend-service/internal/observability"
)

// Kind tags the failure category of an upstream call.
type Kind int

const (
	// KindTimeout covers request deadlines and context cancellation.
	KindTimeout Kind = iota
	// KindTransport covers connection, DNS, and other pre-response failures.
	KindTransport
	// KindStatus covers non-2xx upstream responses.
	KindStatus
)

// maxBodyDetail bounds how much of an upstream error body is retained for
// diagnostics.
const maxBodyDetail = 512

// UpstreamError is the uniform failure signal every gateway call surfaces.
// Status and Body are only meaningful for KindStatus.
type UpstreamError struct {
	Kind     Kind
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *UpstreamError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("%s: upstream timeout: %v", e.Provider, e.Err)
	case KindTransport:
		return fmt.Sprintf("%s: upstream transport failure: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.Status, e.Body)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// AsUpstreamError extracts an *UpstreamError from err if present.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// Response is a completed upstream response: status code, raw body, and a
// parsed-JSON accessor.
type Response struct {
	Status int
	Body   []byte
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// Options configures a single upstream client.
type Options struct {
	Provider       string // stable label for logs/metrics
	Timeout        time.Duration
	RetryAttempts  int // total attempts; <=1 disables retry
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	Headers        map[string]string // attached to every request
	Breaker        *gobreaker.CircuitBreaker
}

// Client wraps a shared *http.Client with bounded retry-with-backoff on a
// fixed set of retryable status codes (GET only) and uniform error wrapping.
// Safe for concurrent use; construct once per upstream and inject.
type Client struct {
	opts Options
	http *http.Client
}

// New builds a Client around the shared httpClient. httpClient may be shared
// across upstreams; per-call deadlines come from Options.Timeout.
func New(httpClient *http.Client, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 2 * time.Second
	}
	return &Client{opts: opts, http: httpClient}
}

// retryableStatus reports whether a GET against this upstream may be retried
// after the given status code.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Get issues a GET with the configured timeout, headers, and retry policy.
// params values are appended in order, so repeated keys are supported.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt < c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(c.opts.Provider).Inc()
			select {
			case <-ctx.Done():
				return nil, c.wrapTransport(ctx.Err())
			case <-time.After(c.backoff(attempt)):
			}
		}

		resp, err := c.do(ctx, rawURL, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		ue, ok := AsUpstreamError(err)
		if !ok {
			return nil, err
		}
		if ue.Kind == KindStatus && !retryableStatus(ue.Status) {
			return nil, err
		}
		if ue.Kind == KindTransport {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *Client) do(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", rawURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.execute(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(c.opts.Provider, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(c.opts.Provider, "error").Observe(duration)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, &UpstreamError{Kind: KindTimeout, Provider: c.opts.Provider, Err: err}
		}
		return nil, &UpstreamError{Kind: KindTransport, Provider: c.opts.Provider, Err: err}
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(c.opts.Provider, status).Inc()
	observability.UpstreamDuration.WithLabelValues(c.opts.Provider, status).Observe(duration)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Kind: KindTransport, Provider: c.opts.Provider, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Kind:     KindStatus,
			Provider: c.opts.Provider,
			Status:   resp.StatusCode,
			Body:     truncate(string(body), maxBodyDetail),
		}
	}

	return &Response{Status: resp.StatusCode, Body: body}, nil
}

// execute runs the request, through the circuit breaker when one is
// configured.
func (c *Client) execute(req *http.Request) (*http.Response, error) {
	if c.opts.Breaker == nil {
		return c.http.Do(req)
	}
	result, err := c.opts.Breaker.Execute(func() (interface{}, error) {
		return c.http.Do(req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

func (c *Client) wrapTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &UpstreamError{Kind: KindTimeout, Provider: c.opts.Provider, Err: err}
	}
	return &UpstreamError{Kind: KindTransport, Provider: c.opts.Provider, Err: err}
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.opts.RetryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.opts.RetryMaxDelay) {
		delay = float64(c.opts.RetryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
