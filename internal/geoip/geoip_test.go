package geoip

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wxtrends/trend-service/internal/client"
)

func testClient(srv *httptest.Server) *client.Client {
	return client.New(srv.Client(), client.Options{Provider: "geoip", Timeout: time.Second})
}

func TestLocate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"success","lat":51.5074,"lon":-0.1278}`))
	}))
	defer srv.Close()

	l := NewHTTPLocator(testClient(srv), srv.URL)
	loc, err := l.Locate(context.Background())
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if loc.Lat != 51.5074 || loc.Lon != -0.1278 {
		t.Errorf("loc = %+v", loc)
	}
}

func TestLocateFailStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail","message":"private range"}`))
	}))
	defer srv.Close()

	l := NewHTTPLocator(testClient(srv), srv.URL)
	if _, err := l.Locate(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestLocateMissingCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	l := NewHTTPLocator(testClient(srv), srv.URL)
	if _, err := l.Locate(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
