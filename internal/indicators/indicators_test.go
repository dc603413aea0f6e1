package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danielhan-dev/strikescan/internal/contracts"
)

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		period int
		want   float64
	}{
		{
			name:   "too short returns neutral",
			closes: []float64{100, 101, 102},
			period: 14,
			want:   50.0,
		},
		{
			name:   "all gains saturates at 100",
			closes: []float64{100, 101, 102, 103, 104, 105},
			period: 5,
			want:   100.0,
		},
		{
			// Gains 3, losses 1 over 4 changes: RS=3, RSI=75.
			name:   "mixed series",
			closes: []float64{100, 101, 102, 101, 102},
			period: 4,
			want:   75.0,
		},
		{
			// Gains 1, losses 3: RS=1/3, RSI=25.
			name:   "mostly losses",
			closes: []float64{100, 99, 98, 99, 98},
			period: 4,
			want:   25.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RSI(tt.closes, tt.period), 1e-9)
		})
	}
}

func TestEMA(t *testing.T) {
	// Flat series stays at the level regardless of smoothing.
	flat := []float64{50, 50, 50, 50, 50, 50}
	assert.InDelta(t, 50.0, EMA(flat, 3), 1e-9)

	// Seed SMA(100,102,104)=102, multiplier 0.5:
	// 106*0.5 + 102*0.5 = 104; 108*0.5 + 104*0.5 = 106.
	series := []float64{100, 102, 104, 106, 108}
	assert.InDelta(t, 106.0, EMA(series, 3), 1e-9)

	// Too short.
	assert.Equal(t, 0.0, EMA([]float64{1, 2}, 3))
}

func TestSMA(t *testing.T) {
	closes := []float64{10, 20, 30, 40}
	assert.InDelta(t, 30.0, SMA(closes, 3), 1e-9)
	assert.Equal(t, 0.0, SMA(closes, 5))
	assert.Equal(t, 0.0, SMA(closes, 0))
}

func TestATR(t *testing.T) {
	bars := []contracts.HistoricalBar{
		{High: 102, Low: 98, Close: 100},
		{High: 103, Low: 99, Close: 101},  // TR = max(4, 3, 1) = 4
		{High: 106, Low: 102, Close: 105}, // TR = max(4, 5, 1) = 5
		{High: 105, Low: 99, Close: 100},  // TR = max(6, 0, 6) = 6
	}
	assert.InDelta(t, 5.0, ATR(bars, 3), 1e-9)

	// Gap down: previous close dominates the range.
	gap := []contracts.HistoricalBar{
		{High: 110, Low: 108, Close: 109},
		{High: 100, Low: 99, Close: 99}, // TR = max(1, 9, 10) = 10
	}
	assert.InDelta(t, 10.0, ATR(gap, 1), 1e-9)

	assert.Equal(t, 0.0, ATR(bars, 4))
}
