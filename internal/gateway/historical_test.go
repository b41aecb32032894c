package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wxtrends/trend-service/internal/client"
	"github.com/wxtrends/trend-service/internal/models"
)

func newTestClient(t *testing.T, srv *httptest.Server) *client.Client {
	t.Helper()
	return client.New(srv.Client(), client.Options{
		Provider: "test",
		Timeout:  time.Second,
	})
}

func TestDailyHistoryMissingToken(t *testing.T) {
	g := NewHistoricalGateway(nil, "http://unused", "")
	_, err := g.DailyHistory(context.Background(), models.Coordinates{}, time.Now(), time.Now())
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
}

func TestDailyHistoryTwoStepLookup(t *testing.T) {
	var stationQuery, dataQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stations":
			stationQuery = r.URL.Query()
			w.Write([]byte(`{"results":[{"id":"GHCND:USW00003017"}]}`))
		case "/data":
			dataQuery = r.URL.Query()
			w.Write([]byte(`{"results":[
				{"date":"2025-11-30T00:00:00","datatype":"TMAX","value":8.9},
				{"date":"2025-11-30T00:00:00","datatype":"TMIN","value":-2.1},
				{"date":"2025-11-30T00:00:00","datatype":"PRCP","value":3.2},
				{"date":"2025-12-01T00:00:00","datatype":"TMAX","value":12.0},
				{"date":"2025-12-01T00:00:00","datatype":"TMIN","value":1.5},
				{"date":"2025-12-01T00:00:00","datatype":"PRCP","value":0}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	g := NewHistoricalGateway(newTestClient(t, srv), srv.URL, "test-token")
	start := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	days, err := g.DailyHistory(context.Background(), models.Coordinates{Lat: 39.74, Lon: -104.98}, start, end)
	if err != nil {
		t.Fatalf("DailyHistory: %v", err)
	}

	if got := stationQuery["extent"]; len(got) != 1 {
		t.Errorf("stations extent = %v", got)
	}
	if got := dataQuery["stationid"]; len(got) != 1 || got[0] != "GHCND:USW00003017" {
		t.Errorf("data stationid = %v", got)
	}
	if got := dataQuery["datatypeid"]; len(got) != 3 {
		t.Errorf("datatypeid = %v, want TMAX/TMIN/PRCP", got)
	}
	if got := dataQuery["limit"]; len(got) != 1 || got[0] != "1000" {
		t.Errorf("limit = %v, want 1000", got)
	}

	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}
	if days[0].Date != "2025-11-30" || days[1].Date != "2025-12-01" {
		t.Errorf("dates = %s, %s", days[0].Date, days[1].Date)
	}
	if *days[0].TMax != 8.9 || *days[0].TMin != -2.1 {
		t.Errorf("day 0 temps = %v/%v", *days[0].TMax, *days[0].TMin)
	}
	if days[0].Pop != 1.0 {
		t.Errorf("day 0 pop = %v, want 1.0 (recorded precipitation)", days[0].Pop)
	}
	if days[1].Pop != 0.0 {
		t.Errorf("day 1 pop = %v, want 0.0 (zero precipitation)", days[1].Pop)
	}
}

func TestDailyHistoryNoStation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	g := NewHistoricalGateway(newTestClient(t, srv), srv.URL, "test-token")
	_, err := g.DailyHistory(context.Background(), models.Coordinates{Lat: 0, Lon: 0}, time.Now(), time.Now())
	if err == nil {
		t.Fatal("expected error when no station found")
	}
	ue, ok := client.AsUpstreamError(err)
	if !ok || ue.Status != 404 {
		t.Errorf("err = %v, want upstream 404", err)
	}
}

func TestDailyHistoryUpstreamStatusPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"bad token"}`))
	}))
	defer srv.Close()

	g := NewHistoricalGateway(newTestClient(t, srv), srv.URL, "bad-token")
	_, err := g.DailyHistory(context.Background(), models.Coordinates{}, time.Now(), time.Now())
	ue, ok := client.AsUpstreamError(err)
	if !ok {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.Status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", ue.Status)
	}
}
