package indices

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wxtrends/trend-service/internal/models"
)

func TestHeatIndexF(t *testing.T) {
	hi := HeatIndexF(models.Float64(95), models.Float64(60))
	require.NotNil(t, hi)
	assert.False(t, math.IsNaN(*hi) || math.IsInf(*hi, 0))
	// 95F at 60% RH should feel well above ambient.
	assert.Greater(t, *hi, 100.0)
}

func TestHeatIndexF_AbsentInputs(t *testing.T) {
	assert.Nil(t, HeatIndexF(nil, models.Float64(60)))
	assert.Nil(t, HeatIndexF(models.Float64(95), nil))
	assert.Nil(t, HeatIndexF(nil, nil))
}

func TestWindChillF(t *testing.T) {
	tests := []struct {
		name    string
		temp    float64
		wind    float64
		defined bool
	}{
		{"too warm", 60, 10, false},
		{"too calm", 40, 1, false},
		{"boundary temp", 50, 5, true},
		{"boundary wind", 30, 3, true},
		{"cold and windy", 30, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wc := WindChillF(models.Float64(tt.temp), models.Float64(tt.wind))
			if !tt.defined {
				assert.Nil(t, wc)
				return
			}
			require.NotNil(t, wc)
			assert.False(t, math.IsNaN(*wc))
		})
	}
}

func TestWindChillF_BelowAmbient(t *testing.T) {
	wc := WindChillF(models.Float64(30), models.Float64(10))
	require.NotNil(t, wc)
	assert.Less(t, *wc, 30.0)
}

func TestWindChillF_AbsentInputs(t *testing.T) {
	assert.Nil(t, WindChillF(nil, models.Float64(10)))
	assert.Nil(t, WindChillF(models.Float64(30), nil))
}

func TestConversions(t *testing.T) {
	assert.Equal(t, 32.0, CToF(0))
	assert.Equal(t, 212.0, CToF(100))
	assert.Equal(t, 0.0, FToC(32))
	assert.InDelta(t, 22.37, MSToMph(10), 0.01)
	// round trip
	assert.InDelta(t, 18.5, FToC(CToF(18.5)), 1e-9)
}
