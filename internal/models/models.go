package models

import "time"

// Sample is a single upstream reading at a point in time. Optional fields are
// nil when the provider did not report them. Samples are read once into a
// DailyAggregate bucket and then discarded.
type Sample struct {
	Timestamp     time.Time
	Temperature   *float64
	Humidity      *float64
	WindSpeed     *float64
	PrecipProb    *float64 // probability of precipitation, normalized to [0,1]
}

// DailyAggregate is the common per-calendar-day shape every gateway
// normalizes into. TMax/TMin are nil only when no temperature sample was
// observed for the day; when exactly one bound is present the bucketizer
// fills the other from it, so consumers never see one without the other.
type DailyAggregate struct {
	Date string   `json:"date"` // YYYY-MM-DD in the upstream's native zone
	TMax *float64 `json:"tMax"`
	TMin *float64 `json:"tMin"`
	Pop  float64  `json:"pop"`

	// Raw side collections retained during aggregation for risk-index
	// computation; not serialized.
	Humidities []float64 `json:"-"`
	WindSpeeds []float64 `json:"-"`

	Risk *RiskIndex `json:"risk,omitempty"`
}

// RiskIndex carries derived indices for a day. A nil field means the
// preconditions for that index were not met.
type RiskIndex struct {
	HeatIndex *float64 `json:"heatIndex"`
	WindChill *float64 `json:"windChill"`
}

// PredictedDay is one projected point of the trend forecast.
type PredictedDay struct {
	Date string  `json:"date"`
	TMax float64 `json:"tMax"`
	TMin float64 `json:"tMin"`
	Pop  float64 `json:"pop"`
}

// Confidence holds per-metric confidence scores in [0.1, 0.95] and their
// rounded mean.
type Confidence struct {
	TMax    float64 `json:"tMax"`
	TMin    float64 `json:"tMin"`
	Pop     float64 `json:"pop"`
	Overall float64 `json:"overall"`
}

// TrendReport is the full payload for GET /trends.
type TrendReport struct {
	Location         Coordinates      `json:"location"`
	Days             int              `json:"days"`
	Units            string           `json:"units"`
	OfficialForecast []DailyAggregate `json:"officialForecast"`
	Predicted        []PredictedDay   `json:"predicted"`
	Confidence       Confidence       `json:"confidence"`
	Summary          string           `json:"summary"`
	Daily            []DailyAggregate `json:"daily"`
}

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Alert is a passthrough-normalized government weather alert. Not aggregated
// or smoothed.
type Alert struct {
	ID        string      `json:"id"`
	Event     string      `json:"event"`
	Severity  string      `json:"severity"`
	Headline  string      `json:"headline"`
	Effective string      `json:"effective"`
	Ends      string      `json:"ends"`
	Area      string      `json:"area"`
	Polygon   interface{} `json:"polygon"`
}

// Location is one trimmed geocoding search result.
type Location struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	State   string   `json:"state,omitempty"`
	Country string   `json:"country,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Float64 returns a pointer to v. Convenience for optional fields.
func Float64(v float64) *float64 { return &v }
