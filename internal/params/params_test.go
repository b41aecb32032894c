package params

import (
	"errors"
	"net/url"
	"testing"
)

func values(pairs ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Set(pairs[i], pairs[i+1])
	}
	return v
}

func TestParse_Defaults(t *testing.T) {
	q, err := Parse(values("lat", "35.23", "lon", "-80.84"))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if q.Days != DefaultDays {
		t.Errorf("Days = %d, want %d", q.Days, DefaultDays)
	}
	if q.Units != "metric" {
		t.Errorf("Units = %q, want metric", q.Units)
	}
	if q.Lat != 35.23 || q.Lon != -80.84 {
		t.Errorf("Coordinates = (%v, %v), want (35.23, -80.84)", q.Lat, q.Lon)
	}
}

func TestParse_MissingOrInvalidCoordinates(t *testing.T) {
	tests := []struct {
		name string
		v    url.Values
	}{
		{"missing lat", values("lon", "-80.84")},
		{"missing lon", values("lat", "35.23")},
		{"missing both", values()},
		{"unparseable lat", values("lat", "north", "lon", "-80.84")},
		{"lat out of range", values("lat", "91", "lon", "-80.84")},
		{"lon out of range", values("lat", "35.23", "lon", "-200")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.v)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Parse() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestParse_DaysLeniency(t *testing.T) {
	tests := []struct {
		name string
		days string
		want int
	}{
		{"explicit", "3", 3},
		{"zero falls back", "0", DefaultDays},
		{"negative falls back", "-4", DefaultDays},
		{"oversized capped", "90", MaxDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(values("lat", "35.23", "lon", "-80.84", "days", tt.days))
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if q.Days != tt.want {
				t.Errorf("Days = %d, want %d", q.Days, tt.want)
			}
		})
	}
}

func TestParse_NonIntegerDaysRejected(t *testing.T) {
	_, err := Parse(values("lat", "35.23", "lon", "-80.84", "days", "soon"))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Parse() error = %v, want ErrInvalid", err)
	}
}

func TestParse_Units(t *testing.T) {
	q, err := Parse(values("lat", "1", "lon", "2", "units", "imperial"))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if q.Units != "imperial" {
		t.Errorf("Units = %q, want imperial", q.Units)
	}

	if _, err := Parse(values("lat", "1", "lon", "2", "units", "kelvin")); !errors.Is(err, ErrInvalid) {
		t.Errorf("Parse() error = %v, want ErrInvalid for unknown units", err)
	}
}
