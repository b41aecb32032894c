// Package indices implements the derived risk-index formulas (heat index,
// wind chill) and the unit conversions needed to feed them. Both formulas
// expect imperial inputs (Fahrenheit, mph); callers working in metric convert
// on the way in and back out.
package indices

import "math"

// HeatIndexF computes the NWS heat index regression from temperature (F) and
// relative humidity (%). Returns nil when either input is absent. The
// regression is only physically meaningful above roughly 80F / 40% RH, but it
// is applied unconditionally whenever both inputs are present.
func HeatIndexF(tempF, humidity *float64) *float64 {
	if tempF == nil || humidity == nil {
		return nil
	}
	t := *tempF
	r := *humidity
	hi := -42.379 +
		2.04901523*t +
		10.14333127*r -
		0.22475541*t*r -
		0.00683783*t*t -
		0.05481717*r*r +
		0.00122874*t*t*r +
		0.00085282*t*r*r -
		0.00000199*t*t*r*r
	return &hi
}

// WindChillF computes the NWS wind chill from temperature (F) and wind speed
// (mph). Defined only when tempF <= 50 and wind >= 3; returns nil otherwise.
func WindChillF(tempF, windMph *float64) *float64 {
	if tempF == nil || windMph == nil {
		return nil
	}
	t := *tempF
	w := *windMph
	if t > 50 || w < 3 {
		return nil
	}
	wc := 35.74 + 0.6215*t - 35.75*math.Pow(w, 0.16) + 0.4275*t*math.Pow(w, 0.16)
	return &wc
}

// CToF converts Celsius to Fahrenheit.
func CToF(c float64) float64 { return c*9/5 + 32 }

// FToC converts Fahrenheit to Celsius.
func FToC(f float64) float64 { return (f - 32) * 5 / 9 }

// MSToMph converts meters per second to miles per hour.
func MSToMph(ms float64) float64 { return ms * 2.236936 }
