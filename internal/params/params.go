// Package params parses, validates, and defaults query parameters before
// they reach the trend engine or gateways.
package params

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/wxtrends/trend-service/internal/models"
)

var validate = validator.New()

const (
	// DefaultDays is the forecast horizon when days is absent or non-positive.
	// Reference behavior: non-positive values fall back rather than erroring.
	DefaultDays = 7
	// MaxDays bounds the forecast horizon.
	MaxDays = 14
	// DefaultUnits is the unit system when units is absent.
	DefaultUnits = "metric"
)

// ErrInvalid tags any parameter parse/validation failure; handlers map it to
// a 400 response.
var ErrInvalid = errors.New("invalid request parameter")

// Query is the normalized common parameter set.
type Query struct {
	Lat   float64 `validate:"gte=-90,lte=90"`
	Lon   float64 `validate:"gte=-180,lte=180"`
	Days  int     `validate:"gte=1,lte=14"`
	Units string  `validate:"oneof=metric imperial"`
}

// Coordinates returns the parsed lat/lon pair.
func (q Query) Coordinates() models.Coordinates {
	return models.Coordinates{Lat: q.Lat, Lon: q.Lon}
}

// Parse extracts lat, lon, days, and units from values, applying defaults and
// validating ranges. lat and lon are required.
func Parse(values url.Values) (Query, error) {
	q := Query{Days: DefaultDays, Units: DefaultUnits}

	lat, err := requiredFloat(values, "lat")
	if err != nil {
		return Query{}, err
	}
	lon, err := requiredFloat(values, "lon")
	if err != nil {
		return Query{}, err
	}
	q.Lat, q.Lon = lat, lon

	if raw := values.Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Query{}, fmt.Errorf("%w: days must be an integer", ErrInvalid)
		}
		// Lenient: non-positive values fall back to the default, oversized
		// values are capped rather than rejected.
		switch {
		case n <= 0:
			q.Days = DefaultDays
		case n > MaxDays:
			q.Days = MaxDays
		default:
			q.Days = n
		}
	}

	if raw := values.Get("units"); raw != "" {
		q.Units = raw
	}

	if err := validate.Struct(q); err != nil {
		return Query{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return q, nil
}

// ParseCoordinates extracts only the required lat/lon pair.
func ParseCoordinates(values url.Values) (models.Coordinates, error) {
	q, err := Parse(values)
	if err != nil {
		return models.Coordinates{}, err
	}
	return q.Coordinates(), nil
}

// requiredFloat parses a required floating-point parameter.
func requiredFloat(values url.Values, key string) (float64, error) {
	raw := values.Get(key)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalid, key)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalid, key)
	}
	return f, nil
}
