// Package geoip is the thin IP-geolocation collaborator: it returns a
// coordinate pair for the current caller or signals unavailability.
package geoip

import (
	"context"
	"errors"

	"github.com/wxtrends/trend-service/internal/client"
	"github.com/wxtrends/trend-service/internal/models"
)

// ErrUnavailable is returned when the locator cannot produce a coordinate.
var ErrUnavailable = errors.New("geoip: location unavailable")

// Locator resolves the caller's approximate coordinates.
type Locator interface {
	Locate(ctx context.Context) (models.Coordinates, error)
}

// HTTPLocator queries an ip-api style JSON endpoint.
type HTTPLocator struct {
	api     *client.Client
	baseURL string
}

func NewHTTPLocator(api *client.Client, baseURL string) *HTTPLocator {
	return &HTTPLocator{api: api, baseURL: baseURL}
}

type geoResponse struct {
	Status string   `json:"status"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
}

// Locate returns the caller's coordinates or ErrUnavailable when the
// provider cannot resolve them.
func (l *HTTPLocator) Locate(ctx context.Context) (models.Coordinates, error) {
	resp, err := l.api.Get(ctx, l.baseURL+"/json", nil)
	if err != nil {
		return models.Coordinates{}, err
	}

	var payload geoResponse
	if err := resp.JSON(&payload); err != nil {
		return models.Coordinates{}, err
	}
	if payload.Status == "fail" || payload.Lat == nil || payload.Lon == nil {
		return models.Coordinates{}, ErrUnavailable
	}
	return models.Coordinates{Lat: *payload.Lat, Lon: *payload.Lon}, nil
}
