package gateway

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wxtrends/trend-service/internal/bucket"
	"github.com/wxtrends/trend-service/internal/client"
	"github.com/wxtrends/trend-service/internal/models"
)

// forecastTimeLayout is the provider's sub-daily timestamp format (no zone;
// the values are in the provider's reporting zone and day boundaries follow
// it, per the bucketizer contract).
const forecastTimeLayout = "2006-01-02 15:04:05"

// ForecastGateway adapts a current-conditions provider's 3-hourly forecast
// (OpenWeather style: flat list of timestamped entries) into Samples and
// feeds them through the daily bucketizer. One of the two ForecastSource
// variants.
type ForecastGateway struct {
	api     *client.Client
	baseURL string
	apiKey  string
}

func NewForecastGateway(api *client.Client, baseURL, apiKey string) *ForecastGateway {
	return &ForecastGateway{api: api, baseURL: baseURL, apiKey: apiKey}
}

type forecastResponse struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			Temp     *float64 `json:"temp"`
			Humidity *float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed *float64 `json:"speed"`
		} `json:"wind"`
		Pop *float64 `json:"pop"` // already a fraction in [0,1]
	} `json:"list"`
}

// DailyForecast fetches the sub-daily forecast and buckets it into at most
// days daily aggregates. units is passed through to the provider so
// temperatures and wind speeds arrive in the requested system.
func (g *ForecastGateway) DailyForecast(ctx context.Context, loc models.Coordinates, days int, units string) ([]models.DailyAggregate, error) {
	samples, err := g.Samples(ctx, loc, units)
	if err != nil {
		return nil, err
	}
	return bucket.Daily(samples, days), nil
}

// Samples fetches the raw sub-daily forecast entries as Samples.
func (g *ForecastGateway) Samples(ctx context.Context, loc models.Coordinates, units string) ([]models.Sample, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("forecast provider: %w", ErrMissingCredential)
	}

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.4f", loc.Lat))
	params.Set("lon", fmt.Sprintf("%.4f", loc.Lon))
	params.Set("units", providerUnits(units))
	params.Set("appid", g.apiKey)

	resp, err := g.api.Get(ctx, g.baseURL+"/data/2.5/forecast", params)
	if err != nil {
		return nil, err
	}

	var payload forecastResponse
	if err := resp.JSON(&payload); err != nil {
		return nil, err
	}

	samples := make([]models.Sample, 0, len(payload.List))
	for _, entry := range payload.List {
		ts, err := time.Parse(forecastTimeLayout, entry.DtTxt)
		if err != nil {
			continue // skip malformed entries rather than failing the window
		}
		samples = append(samples, models.Sample{
			Timestamp:   ts,
			Temperature: entry.Main.Temp,
			Humidity:    entry.Main.Humidity,
			WindSpeed:   entry.Wind.Speed,
			PrecipProb:  entry.Pop,
		})
	}
	return samples, nil
}

// providerUnits maps the request unit system onto the provider's parameter
// value. The provider's default is Kelvin, so always be explicit.
func providerUnits(units string) string {
	if units == "imperial" {
		return "imperial"
	}
	return "metric"
}
