package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

func testEngine() *Engine {
	return NewEngine(0.05, logger.NewNop())
}

func TestCDFTableMatchesReference(t *testing.T) {
	table := newCDFTable()

	for z := -4.0; z <= 4.0; z += 0.0137 {
		want := 0.5 * (1 + math.Erf(z/math.Sqrt2))
		got := table.CDF(z)
		assert.InDelta(t, want, got, 1e-4, "z=%.4f", z)
	}

	assert.Equal(t, 0.0, table.CDF(-10))
	assert.Equal(t, 1.0, table.CDF(10))
	assert.InDelta(t, 0.5, table.CDF(0), 1e-6)
}

func TestGreeksAtExpiry(t *testing.T) {
	e := testEngine()

	tests := []struct {
		name      string
		spot      float64
		right     contracts.OptionRight
		wantDelta float64
	}{
		{"ITM call", 110, contracts.Call, 1},
		{"OTM call", 90, contracts.Call, 0},
		{"ATM call", 100, contracts.Call, 0},
		{"ITM put", 90, contracts.Put, -1},
		{"OTM put", 110, contracts.Put, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := e.Greeks("TEST", tt.spot, 100, 0, 0.3, tt.right)
			assert.Equal(t, tt.wantDelta, g.Delta)
			assert.Zero(t, g.Gamma)
			assert.Zero(t, g.Theta)
			assert.Zero(t, g.Vega)
		})
	}
}

func TestGreeksATMCall(t *testing.T) {
	e := testEngine()

	g := e.Greeks("TEST", 100, 100, 0.25, 0.20, contracts.Call)

	// Known values for S=K=100, T=0.25, vol=20%, r=5%.
	assert.InDelta(t, 0.5695, g.Delta, 1e-3)
	assert.InDelta(t, 0.0393, g.Gamma, 1e-3)
	assert.True(t, g.Theta < 0, "long option loses value with time")
	assert.InDelta(t, 0.1965, g.Vega, 1e-3)
}

func TestGreeksPutCallDeltaParity(t *testing.T) {
	e := testEngine()

	call := e.Greeks("TEST", 105, 100, 0.5, 0.25, contracts.Call)
	put := e.Greeks("TEST", 105, 100, 0.5, 0.25, contracts.Put)

	assert.InDelta(t, 1.0, call.Delta-put.Delta, 1e-9)
	assert.InDelta(t, call.Gamma, put.Gamma, 1e-9)
	assert.InDelta(t, call.Vega, put.Vega, 1e-9)
}

func TestSurfaceCacheScanScoped(t *testing.T) {
	e := testEngine()
	now := time.Now()
	expiry := now.AddDate(0, 0, 30)

	batch := []contracts.OptionContract{
		{Strike: 100, Expiry: expiry, ImpliedVolatility: 0.3},
		{Strike: 105, Expiry: expiry, ImpliedVolatility: 0.35},
		{Strike: 100, Expiry: expiry, ImpliedVolatility: 0.3}, // duplicate triple
	}

	e.PrecomputeSurface("AAPL", 102, batch, now)
	assert.Equal(t, 2, e.SurfaceSize())

	e.BeginScan()
	assert.Zero(t, e.SurfaceSize())
}

func TestSurfaceCacheMatchesDirectPath(t *testing.T) {
	e := testEngine()
	now := time.Now()
	expiry := now.AddDate(0, 0, 45)
	tYears := YearsToExpiry(expiry, now)

	batch := []contracts.OptionContract{{Strike: 100, Expiry: expiry, ImpliedVolatility: 0.3}}
	e.PrecomputeSurface("AAPL", 102, batch, now)

	cached := e.Greeks("AAPL", 102, 100, tYears, 0.3, contracts.Call)

	direct := testEngine().Greeks("AAPL", 102, 100, tYears, 0.3, contracts.Call)

	assert.InDelta(t, direct.Delta, cached.Delta, 1e-9)
	assert.InDelta(t, direct.Gamma, cached.Gamma, 1e-9)
	assert.InDelta(t, direct.Theta, cached.Theta, 1e-9)
	assert.InDelta(t, direct.Vega, cached.Vega, 1e-9)
}

func TestPremiumIntrinsicAtExpiry(t *testing.T) {
	e := testEngine()

	assert.Equal(t, 10.0, e.Premium(110, 100, 0, 0.3, contracts.Call))
	assert.Equal(t, 0.0, e.Premium(90, 100, 0, 0.3, contracts.Call))
	assert.Equal(t, 10.0, e.Premium(90, 100, 0, 0.3, contracts.Put))
}

func TestSolveSpotRoundTrip(t *testing.T) {
	e := testEngine()
	tYears := 30.0 / 365

	premium := e.Premium(100, 100, tYears, 0.3, contracts.Call)
	target := premium * 1.5

	spot, err := e.SolveSpotForPremium(100, 100, tYears, 0.3, contracts.Call, target)
	require.NoError(t, err)

	back := e.Premium(spot, 100, tYears, 0.3, contracts.Call)
	assert.InDelta(t, target, back, 1e-3)
	assert.Greater(t, spot, 100.0, "higher call premium needs a higher spot")
}

func TestSolveSpotUnreachableTarget(t *testing.T) {
	e := testEngine()

	_, err := e.SolveSpotForPremium(100, 100, 30.0/365, 0.3, contracts.Call, 1e6)
	require.Error(t, err)
}
