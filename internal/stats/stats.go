package stats

import "math"

// DefaultAlpha is the smoothing factor used for trend projection.
const DefaultAlpha = 0.35

// Average returns the arithmetic mean of series, or 0.0 for an empty series.
func Average(series []float64) float64 {
	if len(series) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// PopulationStdDev returns the population standard deviation of series
// (square root of the mean squared deviation from the mean), or 0.0 for an
// empty series.
func PopulationStdDev(series []float64) float64 {
	if len(series) == 0 {
		return 0.0
	}
	mean := Average(series)
	sq := 0.0
	for _, v := range series {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(series)))
}

// Clamp bounds x to [lo, hi]. lo <= hi is a precondition.
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// EWMA returns the exponentially weighted moving average of series with the
// given smoothing factor. The result has the same length as the input;
// element 0 is the raw seed, element i>0 is alpha*raw[i] + (1-alpha)*out[i-1].
// The input must be non-empty; an empty series panics (caller precondition).
func EWMA(series []float64, alpha float64) []float64 {
	if len(series) == 0 {
		panic("stats: EWMA requires a non-empty series")
	}
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
