package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func testClient(t *testing.T, srv *httptest.Server, opts Options) *Client {
	t.Helper()
	if opts.Provider == "" {
		opts.Provider = "test"
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	if opts.RetryBaseDelay == 0 {
		opts.RetryBaseDelay = time.Millisecond
	}
	if opts.RetryMaxDelay == 0 {
		opts.RetryMaxDelay = 5 * time.Millisecond
	}
	return New(srv.Client(), opts)
}

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(t, srv, Options{})
	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var body struct {
		OK bool `json:"ok"`
	}
	if err := resp.JSON(&body); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !body.OK {
		t.Error("body not decoded")
	}
}

func TestGetRepeatedParams(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	params := url.Values{}
	params.Set("limit", "1000")
	params["datatypeid"] = []string{"TMAX", "TMIN", "PRCP"}

	c := testClient(t, srv, Options{})
	if _, err := c.Get(context.Background(), srv.URL, params); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := gotQuery["datatypeid"]; len(got) != 3 {
		t.Errorf("datatypeid values = %v, want 3 entries", got)
	}
}

func TestGetRetriesRetryableStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(t, srv, Options{RetryAttempts: 3})
	if _, err := c.Get(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("Get after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestGetNoRetryOnClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`bad request`))
	}))
	defer srv.Close()

	c := testClient(t, srv, Options{RetryAttempts: 3})
	_, err := c.Get(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (400 must not be retried)", calls)
	}
	ue, ok := AsUpstreamError(err)
	if !ok {
		t.Fatalf("error is not *UpstreamError: %v", err)
	}
	if ue.Kind != KindStatus || ue.Status != http.StatusBadRequest {
		t.Errorf("got kind=%v status=%d", ue.Kind, ue.Status)
	}
}

func TestGetExhaustedRetriesReturnsLastError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv, Options{RetryAttempts: 2})
	_, err := c.Get(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	ue, _ := AsUpstreamError(err)
	if ue == nil || ue.Status != http.StatusBadGateway {
		t.Errorf("last error = %v", err)
	}
}

func TestGetTimeoutKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := testClient(t, srv, Options{Timeout: 20 * time.Millisecond})
	_, err := c.Get(context.Background(), srv.URL, nil)
	ue, ok := AsUpstreamError(err)
	if !ok {
		t.Fatalf("error is not *UpstreamError: %v", err)
	}
	if ue.Kind != KindTimeout {
		t.Errorf("kind = %v, want KindTimeout", ue.Kind)
	}
}

func TestGetBodyTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer srv.Close()

	c := testClient(t, srv, Options{})
	_, err := c.Get(context.Background(), srv.URL, nil)
	ue, ok := AsUpstreamError(err)
	if !ok {
		t.Fatalf("error is not *UpstreamError: %v", err)
	}
	if len(ue.Body) != maxBodyDetail {
		t.Errorf("body length = %d, want %d", len(ue.Body), maxBodyDetail)
	}
}

func TestGetForwardsCorrelationID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Correlation-ID")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx := context.WithValue(context.Background(), "correlation_id", "corr-42")
	c := testClient(t, srv, Options{})
	if _, err := c.Get(ctx, srv.URL, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "corr-42" {
		t.Errorf("X-Correlation-ID = %q, want corr-42", got)
	}
}

func TestGetCustomHeaders(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("token")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(t, srv, Options{Headers: map[string]string{"token": "secret"}})
	if _, err := c.Get(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "secret" {
		t.Errorf("token header = %q, want secret", got)
	}
}
