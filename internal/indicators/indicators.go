package indicators

import "github.com/danielhan-dev/strikescan/internal/contracts"

// RSI computes the relative strength index over the last period changes of
// a close series (oldest first). Returns 50 when the series is too short.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50.0 // Neutral
	}

	var gains, losses float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	if losses == 0 {
		return 100.0
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// EMA computes the exponential moving average of a close series (oldest
// first), seeding with the SMA of the first period values.
func EMA(closes []float64, period int) float64 {
	if len(closes) < period {
		return 0.0
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += closes[i]
	}
	ema := sum / float64(period)

	multiplier := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(closes); i++ {
		ema = closes[i]*multiplier + ema*(1-multiplier)
	}

	return ema
}

// SMA computes the simple moving average of the last period closes.
func SMA(closes []float64, period int) float64 {
	if len(closes) < period || period <= 0 {
		return 0.0
	}

	var sum float64
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period)
}

// ATR computes the average true range over the last period bars using the
// Wilder definition of true range.
func ATR(bars []contracts.HistoricalBar, period int) float64 {
	if len(bars) < period+1 {
		return 0.0
	}

	var sum float64
	start := len(bars) - period
	for i := start; i < len(bars); i++ {
		tr := trueRange(bars[i], bars[i-1])
		sum += tr
	}
	return sum / float64(period)
}

func trueRange(bar, prev contracts.HistoricalBar) float64 {
	hl := bar.High - bar.Low
	hc := abs(bar.High - prev.Close)
	lc := abs(bar.Low - prev.Close)

	tr := hl
	if hc > tr {
		tr = hc
	}
	if lc > tr {
		tr = lc
	}
	return tr
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
