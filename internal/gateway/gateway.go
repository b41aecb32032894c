// Package gateway holds the upstream adapters. Each gateway translates one
// provider's payload into the common daily-aggregate (or alert) shape and
// surfaces failures through the client package's uniform taxonomy: timeout,
// transport failure, or upstream error status.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/wxtrends/trend-service/internal/models"
)

// ErrMissingCredential is returned when a gateway's upstream credential is
// absent from configuration. The HTTP layer maps it to a synthetic 401.
var ErrMissingCredential = errors.New("upstream credential not configured")

// HistorySource provides date-bounded daily history for a coordinate.
type HistorySource interface {
	DailyHistory(ctx context.Context, loc models.Coordinates, start, end time.Time) ([]models.DailyAggregate, error)
}

// ForecastSource provides a short-horizon daily forecast for a coordinate.
// Two variants exist (gridpoint periods and bucketized 3-hourly samples); a
// deployment wires exactly one into the trend engine.
type ForecastSource interface {
	DailyForecast(ctx context.Context, loc models.Coordinates, days int, units string) ([]models.DailyAggregate, error)
}
