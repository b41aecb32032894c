// Package trend implements the trend-forecasting engine: it blends a
// smoothed 90-day history with an official short-horizon forecast into a
// projected daily series, a per-metric confidence block, and derived risk
// indices.
package trend

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/wxtrends/trend-service/internal/bucket"
	"github.com/wxtrends/trend-service/internal/gateway"
	"github.com/wxtrends/trend-service/internal/indices"
	"github.com/wxtrends/trend-service/internal/models"
	"github.com/wxtrends/trend-service/internal/observability"
	"github.com/wxtrends/trend-service/internal/stats"
)

const (
	// historyLookbackDays is the fixed archive window ending "now".
	historyLookbackDays = 90
	// minHistoryRecords is the minimum number of complete daily records
	// (both temperature bounds present) required to project a trend.
	minHistoryRecords = 30
	// momentumWeight scales the weekly-average delta into a per-day drift.
	momentumWeight = 0.4
	// weekWindow is the span of each weekly comparison average.
	weekWindow = 7
	// comparisonWindowDays is the recent-history span used for confidence.
	comparisonWindowDays = 14
	// confidenceEpsilon guards the confidence denominator against a zero
	// noise+signal sum.
	confidenceEpsilon = 1e-6
)

// ErrInsufficientHistory is returned when fewer than minHistoryRecords
// complete daily records survive bucketing. Handlers map it to 422.
var ErrInsufficientHistory = errors.New("insufficient history for trend projection")

// Engine orchestrates history retrieval, smoothing, projection, confidence
// scoring, and risk-index derivation. Gateways execute sequentially; the
// official-forecast fetch is tolerated to fail.
type Engine struct {
	history  gateway.HistorySource
	forecast gateway.ForecastSource
	clock    clockwork.Clock
	logger   *zap.Logger
}

// New builds an Engine. clock drives the "now"-relative history window and
// the projected dates; pass a fake clock in tests.
func New(history gateway.HistorySource, forecast gateway.ForecastSource, clock clockwork.Clock, logger *zap.Logger) *Engine {
	return &Engine{history: history, forecast: forecast, clock: clock, logger: logger}
}

// metricSeries is one metric's raw history plus its derived projection.
type metricSeries struct {
	raw       []float64
	smoothed  []float64
	momentum  float64
	predicted []float64
}

// Compute runs the full pipeline for a coordinate. days and units are
// already normalized by the caller.
func (e *Engine) Compute(ctx context.Context, loc models.Coordinates, days int, units string) (*models.TrendReport, error) {
	end := e.clock.Now()
	start := end.AddDate(0, 0, -historyLookbackDays)

	history, err := e.history.DailyHistory(ctx, loc, start, end)
	if err != nil {
		observability.TrendRequestsTotal.WithLabelValues("upstream_error").Inc()
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	complete := completeRecords(history)
	observability.TrendHistoryRecords.Observe(float64(len(complete)))
	if len(complete) < minHistoryRecords {
		observability.TrendRequestsTotal.WithLabelValues("insufficient_history").Inc()
		return nil, fmt.Errorf("%w: have %d complete daily records, need %d",
			ErrInsufficientHistory, len(complete), minHistoryRecords)
	}

	tMax := project(seriesOf(complete, func(d models.DailyAggregate) float64 { return *d.TMax }), days, false)
	tMin := project(seriesOf(complete, func(d models.DailyAggregate) float64 { return *d.TMin }), days, false)
	pop := project(seriesOf(complete, func(d models.DailyAggregate) float64 { return d.Pop }), days, true)

	predicted := make([]models.PredictedDay, days)
	for i := 0; i < days; i++ {
		predicted[i] = models.PredictedDay{
			Date: end.AddDate(0, 0, i+1).Format("2006-01-02"),
			TMax: tMax.predicted[i],
			TMin: tMin.predicted[i],
			Pop:  pop.predicted[i],
		}
	}

	// The official forecast enriches the payload but its failure does not
	// abort the projection.
	official, err := e.forecast.DailyForecast(ctx, loc, days, units)
	if err != nil {
		e.logger.Warn("official forecast unavailable",
			zap.Float64("lat", loc.Lat), zap.Float64("lon", loc.Lon), zap.Error(err))
		official = nil
	}

	confidence := models.Confidence{
		TMax: confidenceScore(tMax),
		TMin: confidenceScore(tMin),
		Pop:  confidenceScore(pop),
	}
	confidence.Overall = stats.Round2((confidence.TMax + confidence.TMin + confidence.Pop) / 3)

	daily := attachRisk(official, units)

	observability.TrendRequestsTotal.WithLabelValues("ok").Inc()
	return &models.TrendReport{
		Location:         loc,
		Days:             days,
		Units:            units,
		OfficialForecast: official,
		Predicted:        predicted,
		Confidence:       confidence,
		Summary:          summarize(predicted, days),
		Daily:            daily,
	}, nil
}

// completeRecords keeps only days where both temperature bounds are present.
// Pop always carries a value (zero default), so these are the records with
// all three metrics usable.
func completeRecords(history []models.DailyAggregate) []models.DailyAggregate {
	out := make([]models.DailyAggregate, 0, len(history))
	for _, d := range history {
		if d.TMax != nil && d.TMin != nil {
			out = append(out, d)
		}
	}
	return out
}

func seriesOf(days []models.DailyAggregate, pick func(models.DailyAggregate) float64) []float64 {
	out := make([]float64, len(days))
	for i, d := range days {
		out[i] = pick(d)
	}
	return out
}

// project smooths a raw series, derives its weekly momentum, and extrapolates
// days future points. isPop switches on the probability-specific handling:
// the momentum term is divided by the week span and results are clamped to
// [0,1]; temperatures are rounded to one decimal instead.
func project(raw []float64, days int, isPop bool) metricSeries {
	m := metricSeries{raw: raw}
	m.smoothed = stats.EWMA(raw, stats.DefaultAlpha)

	last7 := raw[len(raw)-weekWindow:]
	prev7 := raw[len(raw)-2*weekWindow : len(raw)-weekWindow]
	m.momentum = momentumWeight * (stats.Average(last7) - stats.Average(prev7))

	base := m.smoothed[len(m.smoothed)-1]
	m.predicted = make([]float64, days)
	for i := 1; i <= days; i++ {
		if isPop {
			m.predicted[i-1] = stats.Clamp(base+(m.momentum/weekWindow)*float64(i), 0, 1)
		} else {
			m.predicted[i-1] = stats.Round1(base + m.momentum*float64(i))
		}
	}
	return m
}

// confidenceScore compares projection noise against trend signal:
// 1 - noise/(noise+signal+eps), clamped to [0.1, 0.95]. Noise is the
// population standard deviation of the recent comparison window; signal is
// how far the predicted average moved from that window's average.
func confidenceScore(m metricSeries) float64 {
	window := m.raw
	if len(window) > comparisonWindowDays {
		window = window[len(window)-comparisonWindowDays:]
	}
	noise := stats.PopulationStdDev(window)
	signal := stats.Average(m.predicted) - stats.Average(window)
	if signal < 0 {
		signal = -signal
	}
	return stats.Clamp(1-noise/(noise+signal+confidenceEpsilon), 0.1, 0.95)
}

// summarize classifies the projected temperature and precipitation deltas
// between the last and first predicted day into one sentence. The threshold
// is one unit either way: one degree for temperature, one percentage point
// for precipitation probability.
func summarize(predicted []models.PredictedDay, days int) string {
	first, last := predicted[0], predicted[len(predicted)-1]

	tempWord := "steady"
	switch delta := last.TMax - first.TMax; {
	case delta > 1:
		tempWord = "warming"
	case delta < -1:
		tempWord = "cooling"
	}

	popWord := "steady"
	switch delta := (last.Pop - first.Pop) * 100; {
	case delta > 1:
		popWord = "increasing"
	case delta < -1:
		popWord = "decreasing"
	}

	return fmt.Sprintf("Temperatures %s and rain chances %s over the next %d days.", tempWord, popWord, days)
}

// attachRisk derives heat index and wind chill for each official-forecast
// day from its temperature bounds and representative humidity/wind readings.
// The calculators expect imperial inputs, so metric aggregates make the
// round trip through Fahrenheit and mph.
func attachRisk(official []models.DailyAggregate, units string) []models.DailyAggregate {
	daily := make([]models.DailyAggregate, len(official))
	copy(daily, official)
	for i := range daily {
		d := &daily[i]
		humidity := bucket.MaxOf(d.Humidities)
		wind := bucket.MaxOf(d.WindSpeeds)

		tMaxF, tMinF := d.TMax, d.TMin
		windMph := wind
		if units != "imperial" {
			if d.TMax != nil {
				tMaxF = models.Float64(indices.CToF(*d.TMax))
			}
			if d.TMin != nil {
				tMinF = models.Float64(indices.CToF(*d.TMin))
			}
			if wind != nil {
				windMph = models.Float64(indices.MSToMph(*wind))
			}
		}

		risk := &models.RiskIndex{
			HeatIndex: indices.HeatIndexF(tMaxF, humidity),
			WindChill: indices.WindChillF(tMinF, windMph),
		}
		if units != "imperial" {
			if risk.HeatIndex != nil {
				risk.HeatIndex = models.Float64(stats.Round1(indices.FToC(*risk.HeatIndex)))
			}
			if risk.WindChill != nil {
				risk.WindChill = models.Float64(stats.Round1(indices.FToC(*risk.WindChill)))
			}
		} else {
			if risk.HeatIndex != nil {
				risk.HeatIndex = models.Float64(stats.Round1(*risk.HeatIndex))
			}
			if risk.WindChill != nil {
				risk.WindChill = models.Float64(stats.Round1(*risk.WindChill))
			}
		}
		d.Risk = risk
	}
	return daily
}
