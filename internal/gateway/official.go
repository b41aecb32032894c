package gateway

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wxtrends/trend-service/internal/client"
	"github.com/wxtrends/trend-service/internal/indices"
	"github.com/wxtrends/trend-service/internal/models"
)

// OfficialGateway adapts the government forecast service (NWS style): a
// points lookup resolves the gridpoint forecast endpoint for a coordinate,
// then the period-based forecast is fetched from it. Periods are discrete
// day/night blocks rather than timestamped samples, so per-day aggregation is
// implemented here with the same max/min/max-pop policy as the bucketizer but
// independent code. The other ForecastSource variant.
type OfficialGateway struct {
	api     *client.Client
	baseURL string
}

func NewOfficialGateway(api *client.Client, baseURL string) *OfficialGateway {
	return &OfficialGateway{api: api, baseURL: baseURL}
}

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type gridForecastResponse struct {
	Properties struct {
		Periods []struct {
			StartTime                  string  `json:"startTime"`
			Temperature                float64 `json:"temperature"`
			TemperatureUnit            string  `json:"temperatureUnit"`
			ProbabilityOfPrecipitation struct {
				Value *float64 `json:"value"` // percent, may be null
			} `json:"probabilityOfPrecipitation"`
		} `json:"periods"`
	} `json:"properties"`
}

// DailyForecast resolves the gridpoint endpoint for loc and aggregates its
// periods per calendar day, truncated to days entries. Period temperatures
// arrive in Fahrenheit and are converted when units is metric.
func (g *OfficialGateway) DailyForecast(ctx context.Context, loc models.Coordinates, days int, units string) ([]models.DailyAggregate, error) {
	forecastURL, err := g.resolveGridEndpoint(ctx, loc)
	if err != nil {
		return nil, err
	}

	resp, err := g.api.Get(ctx, forecastURL, nil)
	if err != nil {
		return nil, err
	}

	var payload gridForecastResponse
	if err := resp.JSON(&payload); err != nil {
		return nil, err
	}

	var out []models.DailyAggregate
	index := make(map[string]int)
	for _, p := range payload.Properties.Periods {
		ts, err := time.Parse(time.RFC3339, p.StartTime)
		if err != nil {
			continue
		}
		date := ts.Format("2006-01-02")

		i, ok := index[date]
		if !ok {
			if days > 0 && len(out) >= days {
				break
			}
			out = append(out, models.DailyAggregate{Date: date})
			i = len(out) - 1
			index[date] = i
		}
		agg := &out[i]

		temp := p.Temperature
		if p.TemperatureUnit == "F" && units != "imperial" {
			temp = indices.FToC(temp)
		}
		if agg.TMax == nil || temp > *agg.TMax {
			agg.TMax = models.Float64(temp)
		}
		if agg.TMin == nil || temp < *agg.TMin {
			agg.TMin = models.Float64(temp)
		}

		if v := p.ProbabilityOfPrecipitation.Value; v != nil {
			pop := *v / 100 // provider reports percent
			if pop > agg.Pop {
				agg.Pop = pop
			}
		}
	}
	return out, nil
}

// resolveGridEndpoint performs the points lookup for a coordinate.
func (g *OfficialGateway) resolveGridEndpoint(ctx context.Context, loc models.Coordinates) (string, error) {
	pointsURL := fmt.Sprintf("%s/points/%.4f,%.4f", g.baseURL, loc.Lat, loc.Lon)
	resp, err := g.api.Get(ctx, pointsURL, nil)
	if err != nil {
		return "", err
	}

	var payload pointsResponse
	if err := resp.JSON(&payload); err != nil {
		return "", err
	}
	if payload.Properties.Forecast == "" {
		return "", &client.UpstreamError{
			Kind:     client.KindStatus,
			Provider: "official_forecast",
			Status:   404,
			Body:     fmt.Sprintf("no gridpoint forecast for %.4f,%.4f", loc.Lat, loc.Lon),
		}
	}
	if _, err := url.Parse(payload.Properties.Forecast); err != nil {
		return "", fmt.Errorf("invalid gridpoint forecast URL: %w", err)
	}
	return payload.Properties.Forecast, nil
}
