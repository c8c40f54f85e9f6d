package fuelroute

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stopAt(odometer, price float64) Stop {
	return Stop{CumulativeDistance: odometer, Station: StationSnapshot{Price: price}}
}

func TestComputeTotalCost(t *testing.T) {
	tests := []struct {
		name  string
		stops []Stop
		mpg   float64
		want  float64
	}{
		{"no stops", nil, 10, 0},
		{"single stop", []Stop{stopAt(500, 3.00)}, 10, 150.00},
		{"deltas between stops", []Stop{stopAt(460, 3.00), stopAt(930, 4.00), stopAt(1400, 2.50)}, 10, 138 + 188 + 117.5},
		{"other economy", []Stop{stopAt(480, 3.50)}, 24, 70.00},
		{"rounds to cents", []Stop{stopAt(473.2, 3.279)}, 10, 155.16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeTotalCost(tt.stops, tt.mpg)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestComputeTotalCost_RoundsHalfToEven(t *testing.T) {
	// 5 miles at 10 mpg is exactly half a gallon, so these totals sit exactly on a half cent.
	tests := []struct {
		price float64
		want  float64
	}{
		{0.25, 0.12}, // 0.125
		{0.75, 0.38}, // 0.375
		{1.25, 0.62}, // 0.625
	}
	for _, tt := range tests {
		got, err := ComputeTotalCost([]Stop{stopAt(5, tt.price)}, 10)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "price %v", tt.price)
	}
}

func TestComputeTotalCost_InvalidEconomy(t *testing.T) {
	for _, mpg := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		_, err := ComputeTotalCost([]Stop{stopAt(500, 3.00)}, mpg)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "mpg %v", mpg)
	}
}
