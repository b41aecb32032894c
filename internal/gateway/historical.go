package gateway

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/wxtrends/trend-service/internal/client"
	"github.com/wxtrends/trend-service/internal/models"
)

// Climate-archive observation type codes.
const (
	datatypeTMax   = "TMAX"
	datatypeTMin   = "TMIN"
	datatypePrecip = "PRCP"
)

// maxDataLimit is the archive's per-request result cap; larger requested
// limits are silently capped, not rejected.
const maxDataLimit = 1000

// stationSearchRadius is the half-width in degrees of the bounding box used
// to resolve the nearest station for a coordinate.
const stationSearchRadius = 0.5

// HistoricalGateway adapts a climate-data archive (NOAA CDO style: token
// header, flat typed observation rows) into daily aggregates. Lookups are
// two-step: resolve the nearest station for the coordinate, then fetch the
// date-bounded observation rows for it.
type HistoricalGateway struct {
	api       *client.Client
	baseURL   string
	token     string
	datasetID string
}

// NewHistoricalGateway builds the archive gateway. token may be empty; calls
// then fail with ErrMissingCredential.
func NewHistoricalGateway(api *client.Client, baseURL, token string) *HistoricalGateway {
	return &HistoricalGateway{
		api:       api,
		baseURL:   baseURL,
		token:     token,
		datasetID: "GHCND",
	}
}

type stationsResponse struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
}

type observationsResponse struct {
	Results []struct {
		Date     string  `json:"date"`
		Datatype string  `json:"datatype"`
		Value    float64 `json:"value"`
	} `json:"results"`
}

// DailyHistory returns one aggregate per day with any archive observation in
// [start, end], ascending by date. Precipitation presence becomes a binary
// pop proxy: 1.0 when the day recorded any precipitation, 0.0 otherwise.
func (g *HistoricalGateway) DailyHistory(ctx context.Context, loc models.Coordinates, start, end time.Time) ([]models.DailyAggregate, error) {
	if g.token == "" {
		return nil, fmt.Errorf("historical archive: %w", ErrMissingCredential)
	}

	stationID, err := g.nearestStation(ctx, loc)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("datasetid", g.datasetID)
	params.Set("stationid", stationID)
	params.Set("startdate", start.Format("2006-01-02"))
	params.Set("enddate", end.Format("2006-01-02"))
	params.Set("units", "metric")
	params.Set("limit", fmt.Sprintf("%d", maxDataLimit))
	params.Set("offset", "1")
	// Repeated keys: the archive expects one datatypeid parameter per code.
	params["datatypeid"] = []string{datatypeTMax, datatypeTMin, datatypePrecip}

	resp, err := g.api.Get(ctx, g.baseURL+"/data", params)
	if err != nil {
		return nil, err
	}

	var payload observationsResponse
	if err := resp.JSON(&payload); err != nil {
		return nil, err
	}

	byDate := make(map[string]*models.DailyAggregate)
	for _, row := range payload.Results {
		// Archive dates arrive as "2006-01-02T00:00:00"; key on the date part.
		date := row.Date
		if len(date) >= 10 {
			date = date[:10]
		}
		agg, ok := byDate[date]
		if !ok {
			agg = &models.DailyAggregate{Date: date}
			byDate[date] = agg
		}
		switch row.Datatype {
		case datatypeTMax:
			agg.TMax = models.Float64(row.Value)
		case datatypeTMin:
			agg.TMin = models.Float64(row.Value)
		case datatypePrecip:
			if row.Value > 0 {
				agg.Pop = 1.0
			}
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]models.DailyAggregate, 0, len(dates))
	for _, d := range dates {
		out = append(out, *byDate[d])
	}
	return out, nil
}

// nearestStation resolves the first archive station inside a bounding box
// around the coordinate.
func (g *HistoricalGateway) nearestStation(ctx context.Context, loc models.Coordinates) (string, error) {
	params := url.Values{}
	params.Set("datasetid", g.datasetID)
	params.Set("extent", fmt.Sprintf("%.4f,%.4f,%.4f,%.4f",
		loc.Lat-stationSearchRadius, loc.Lon-stationSearchRadius,
		loc.Lat+stationSearchRadius, loc.Lon+stationSearchRadius))
	params.Set("sortfield", "name")
	params.Set("limit", "1")

	resp, err := g.api.Get(ctx, g.baseURL+"/stations", params)
	if err != nil {
		return "", err
	}

	var payload stationsResponse
	if err := resp.JSON(&payload); err != nil {
		return "", err
	}
	if len(payload.Results) == 0 {
		return "", &client.UpstreamError{
			Kind:     client.KindStatus,
			Provider: "historical",
			Status:   404,
			Body:     fmt.Sprintf("no archive station near %.4f,%.4f", loc.Lat, loc.Lon),
		}
	}
	return payload.Results[0].ID, nil
}
