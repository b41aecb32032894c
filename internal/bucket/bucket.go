// Package bucket groups irregular time-stamped samples into per-calendar-day
// aggregates. Date boundaries follow each sample timestamp's own zone; the
// gateways decide what zone their samples carry, this package does not
// normalize them.
package bucket

import (
	"sort"

	"github.com/wxtrends/trend-service/internal/models"
)

const dateLayout = "2006-01-02"

// Daily buckets samples by calendar date and returns the aggregates in
// ascending date order, truncated to at most maxDays entries. maxDays <= 0
// means no truncation.
//
// Per bucket: tMax/tMin are running max/min over temperature samples, pop is
// the running max over precipitation probabilities (0 when none reported),
// and humidity/wind readings are collected raw for later risk-index
// derivation. A bucket that saw a temperature sample always ends up with both
// bounds set: a missing bound is filled from the present one.
func Daily(samples []models.Sample, maxDays int) []models.DailyAggregate {
	byDate := make(map[string]*models.DailyAggregate)

	for _, s := range samples {
		key := s.Timestamp.Format(dateLayout)
		agg, ok := byDate[key]
		if !ok {
			agg = &models.DailyAggregate{Date: key}
			byDate[key] = agg
		}

		if s.Temperature != nil {
			t := *s.Temperature
			if agg.TMax == nil || t > *agg.TMax {
				agg.TMax = models.Float64(t)
			}
			if agg.TMin == nil || t < *agg.TMin {
				agg.TMin = models.Float64(t)
			}
		}
		if s.PrecipProb != nil && *s.PrecipProb > agg.Pop {
			agg.Pop = *s.PrecipProb
		}
		if s.Humidity != nil {
			agg.Humidities = append(agg.Humidities, *s.Humidity)
		}
		if s.WindSpeed != nil {
			agg.WindSpeeds = append(agg.WindSpeeds, *s.WindSpeed)
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]models.DailyAggregate, 0, len(dates))
	for _, d := range dates {
		agg := byDate[d]
		fillMissingBound(agg)
		out = append(out, *agg)
		if maxDays > 0 && len(out) >= maxDays {
			break
		}
	}
	return out
}

// fillMissingBound applies the fallback-to-present-value policy: if exactly
// one of tMax/tMin is set, the other takes its value so consumers never see
// one bound without the other.
func fillMissingBound(agg *models.DailyAggregate) {
	if agg.TMax == nil && agg.TMin != nil {
		agg.TMax = models.Float64(*agg.TMin)
	}
	if agg.TMin == nil && agg.TMax != nil {
		agg.TMin = models.Float64(*agg.TMax)
	}
}

// MaxOf returns a pointer to the maximum of values, or nil for an empty set.
// Used to pick the representative humidity/wind reading for a day.
func MaxOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return &max
}
