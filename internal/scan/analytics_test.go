package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhan-dev/strikescan/internal/contracts"
)

func TestAnalyticsForComputesChainSide(t *testing.T) {
	now := time.Now()
	router := &fakeRouter{
		quotes: map[string]*contracts.Quote{"TST": quoteOf("TST")},
	}
	chains := &fakeChains{chains: map[string][]contracts.OptionContract{"TST": scorableChain(now)}}

	o := newTestOrchestrator(t, &fakeUniverse{}, router, chains, nil)

	got, err := o.AnalyticsFor(context.Background(), "TST", contracts.Call)
	require.NoError(t, err)

	// Only the call side of the two-contract chain.
	require.Len(t, got.Contracts, 1)
	assert.Equal(t, "TST_C100", got.Contracts[0].Contract.Symbol)
	assert.Equal(t, int64(8000), got.TotalVolume)
	assert.Equal(t, int64(4000), got.TotalOI)
	assert.InDelta(t, 0.35, got.AvgIV, 1e-9)
	assert.InDelta(t, 100.05, got.Spot, 1e-9)
	assert.Equal(t, contracts.ProvenanceLive, got.QuoteSource)

	// A 5-day near-the-money call carries a real delta.
	g := got.Contracts[0].Greeks
	assert.Greater(t, g.Delta, 0.3)
	assert.Less(t, g.Delta, 0.8)
	assert.Greater(t, g.Vega, 0.0)
}

func TestAnalyticsForEmptySide(t *testing.T) {
	now := time.Now()
	callOnly := []contracts.OptionContract{scorableChain(now)[0]}
	router := &fakeRouter{
		quotes: map[string]*contracts.Quote{"TST": quoteOf("TST")},
	}
	chains := &fakeChains{chains: map[string][]contracts.OptionContract{"TST": callOnly}}

	o := newTestOrchestrator(t, &fakeUniverse{}, router, chains, nil)

	_, err := o.AnalyticsFor(context.Background(), "TST", contracts.Put)
	assert.ErrorIs(t, err, contracts.ErrNoData)
}

func TestAnalyticsForUnknownSymbol(t *testing.T) {
	o := newTestOrchestrator(t, &fakeUniverse{}, &fakeRouter{}, &fakeChains{}, nil)

	_, err := o.AnalyticsFor(context.Background(), "NOPE", contracts.Call)
	assert.ErrorIs(t, err, contracts.ErrNoData)
}
