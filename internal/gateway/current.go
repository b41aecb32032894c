package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/wxtrends/trend-service/internal/client"
	"github.com/wxtrends/trend-service/internal/models"
)

// CurrentGateway is the thin current-conditions passthrough: the provider's
// payload is relayed as-is, so the body stays raw JSON.
type CurrentGateway struct {
	api     *client.Client
	baseURL string
	apiKey  string
}

func NewCurrentGateway(api *client.Client, baseURL, apiKey string) *CurrentGateway {
	return &CurrentGateway{api: api, baseURL: baseURL, apiKey: apiKey}
}

// Conditions fetches the provider's current-conditions payload for loc.
func (g *CurrentGateway) Conditions(ctx context.Context, loc models.Coordinates, units string) (json.RawMessage, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("conditions provider: %w", ErrMissingCredential)
	}

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.4f", loc.Lat))
	params.Set("lon", fmt.Sprintf("%.4f", loc.Lon))
	params.Set("units", providerUnits(units))
	params.Set("appid", g.apiKey)

	resp, err := g.api.Get(ctx, g.baseURL+"/data/2.5/weather", params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}
