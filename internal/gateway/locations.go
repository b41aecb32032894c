package gateway

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/wxtrends/trend-service/internal/client"
	"github.com/wxtrends/trend-service/internal/models"
)

// maxLocationResults caps the trimmed result list returned to callers.
const maxLocationResults = 25

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	commaRun      = regexp.MustCompile(`\s*,\s*`)
)

// LocationsGateway adapts the geocoding provider's direct search into the
// trimmed Location shape.
type LocationsGateway struct {
	api     *client.Client
	baseURL string
	apiKey  string
}

func NewLocationsGateway(api *client.Client, baseURL, apiKey string) *LocationsGateway {
	return &LocationsGateway{api: api, baseURL: baseURL, apiKey: apiKey}
}

type geocodeResult struct {
	Name    string   `json:"name"`
	State   string   `json:"state"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// Search runs a direct geocoding lookup for q, optionally narrowing with a
// case-insensitive substring filter, capped at maxLocationResults.
func (g *LocationsGateway) Search(ctx context.Context, q string) ([]models.Location, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("geocoding provider: %w", ErrMissingCredential)
	}

	query := NormalizeQuery(q)
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", maxLocationResults))
	params.Set("appid", g.apiKey)

	resp, err := g.api.Get(ctx, g.baseURL+"/geo/1.0/direct", params)
	if err != nil {
		return nil, err
	}

	var results []geocodeResult
	if err := resp.JSON(&results); err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	out := make([]models.Location, 0, len(results))
	for _, r := range results {
		if needle != "" && !strings.Contains(strings.ToLower(r.Name), needle) &&
			!strings.Contains(strings.ToLower(r.Name+", "+r.State), needle) {
			continue
		}
		out = append(out, models.Location{
			Name:    r.Name,
			State:   r.State,
			Country: r.Country,
			Lat:     r.Lat,
			Lon:     r.Lon,
		})
		if len(out) >= maxLocationResults {
			break
		}
	}
	return out, nil
}

// NormalizeQuery collapses whitespace runs and normalizes comma separators to
// ", " before the query reaches the provider.
func NormalizeQuery(q string) string {
	q = strings.TrimSpace(q)
	q = commaRun.ReplaceAllString(q, ", ")
	q = whitespaceRun.ReplaceAllString(q, " ")
	return q
}
