package gateway

import (
	"context"
	"fmt"
	"net/url"

	"github.com/wxtrends/trend-service/internal/client"
	"github.com/wxtrends/trend-service/internal/models"
)

// AlertsGateway adapts the government active-alerts feed into the Alert
// passthrough shape. Alerts are never aggregated or smoothed.
type AlertsGateway struct {
	api     *client.Client
	baseURL string
}

func NewAlertsGateway(api *client.Client, baseURL string) *AlertsGateway {
	return &AlertsGateway{api: api, baseURL: baseURL}
}

type alertsResponse struct {
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			Event     string `json:"event"`
			Severity  string `json:"severity"`
			Headline  string `json:"headline"`
			Effective string `json:"effective"`
			Ends      string `json:"ends"`
			AreaDesc  string `json:"areaDesc"`
		} `json:"properties"`
		Geometry interface{} `json:"geometry"`
	} `json:"features"`
}

// Active returns the active alerts covering the coordinate.
func (g *AlertsGateway) Active(ctx context.Context, loc models.Coordinates) ([]models.Alert, error) {
	params := url.Values{}
	params.Set("point", fmt.Sprintf("%.4f,%.4f", loc.Lat, loc.Lon))

	resp, err := g.api.Get(ctx, g.baseURL+"/alerts/active", params)
	if err != nil {
		return nil, err
	}

	var payload alertsResponse
	if err := resp.JSON(&payload); err != nil {
		return nil, err
	}

	alerts := make([]models.Alert, 0, len(payload.Features))
	for _, f := range payload.Features {
		alerts = append(alerts, models.Alert{
			ID:        f.ID,
			Event:     f.Properties.Event,
			Severity:  f.Properties.Severity,
			Headline:  f.Properties.Headline,
			Effective: f.Properties.Effective,
			Ends:      f.Properties.Ends,
			Area:      f.Properties.AreaDesc,
			Polygon:   f.Geometry,
		})
	}
	return alerts, nil
}
