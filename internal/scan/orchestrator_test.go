package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/pricing"
	"github.com/danielhan-dev/strikescan/internal/scoring"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

type fakeUniverse struct {
	snap *contracts.UniverseSnapshot
	err  error
}

func (f *fakeUniverse) GetUniverse(ctx context.Context) (*contracts.UniverseSnapshot, error) {
	return f.snap, f.err
}

type fakeRouter struct {
	quotes  map[string]*contracts.Quote
	bundles map[string]*contracts.IndicatorBundle
	block   chan struct{} // when set, GetQuote parks until closed
}

func (f *fakeRouter) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return nil, contracts.ErrNoData
	}
	return q, nil
}

func (f *fakeRouter) GetIndicatorBundle(symbol string, period int) (*contracts.IndicatorBundle, error) {
	b, ok := f.bundles[symbol]
	if !ok {
		return nil, contracts.ErrNoData
	}
	return b, nil
}

type fakeChains struct {
	mu     sync.Mutex
	chains map[string][]contracts.OptionContract
	calls  []string
}

func (f *fakeChains) FetchOptionChain(ctx context.Context, underlying string) ([]contracts.OptionContract, error) {
	f.mu.Lock()
	f.calls = append(f.calls, underlying)
	f.mu.Unlock()

	chain, ok := f.chains[underlying]
	if !ok {
		return nil, contracts.ErrNoData
	}
	return chain, nil
}

func (f *fakeChains) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSink struct {
	mu      sync.Mutex
	results []*contracts.ScanResult
}

func (f *fakeSink) Store(ctx context.Context, result *contracts.ScanResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

func universeOf(tickers ...string) *contracts.UniverseSnapshot {
	snap := &contracts.UniverseSnapshot{FetchedAt: time.Now()}
	for _, t := range tickers {
		snap.Entries = append(snap.Entries, contracts.UniverseEntry{
			Ticker: t,
			Price:  100,
			Volume: 1_000_000,
		})
	}
	return snap
}

func quoteOf(symbol string) *contracts.Quote {
	return &contracts.Quote{
		Symbol:    symbol,
		Bid:       100.00,
		Ask:       100.10,
		Last:      100.05,
		Timestamp: time.Now(),
		Source:    contracts.ProvenanceLive,
	}
}

// bullishBundle qualifies the symbol for calls: oversold RSI, price above EMA.
func bullishBundle(symbol string) *contracts.IndicatorBundle {
	return &contracts.IndicatorBundle{Symbol: symbol, RSI: 25, EMA: 99}
}

func scorableChain(now time.Time) []contracts.OptionContract {
	return []contracts.OptionContract{
		{
			Symbol:            "TST_C100",
			Strike:            100,
			Expiry:            now.AddDate(0, 0, 5),
			Right:             contracts.Call,
			Bid:               3.00,
			Ask:               3.10,
			Volume:            8000,
			OpenInterest:      4000,
			ImpliedVolatility: 0.35,
		},
		{
			Symbol:            "TST_P100",
			Strike:            100,
			Expiry:            now.AddDate(0, 0, 5),
			Right:             contracts.Put,
			Bid:               2.80,
			Ask:               2.90,
			Volume:            500,
			OpenInterest:      4000,
			ImpliedVolatility: 0.20,
		},
	}
}

func newTestOrchestrator(t *testing.T, uni UniverseSource, router QuoteRouter, chains ChainFetcher, sink contracts.ResultSink) *Orchestrator {
	t.Helper()
	log := logger.NewNop()
	pricer := pricing.NewEngine(0.05, log)

	scoreCfg := scoring.DefaultConfig()
	scoreCfg.MaxUnderlyingMove = 10

	cfg := DefaultConfig()
	cfg.Universe.MinPrice = 1
	cfg.Universe.MinVolume = 1

	return NewOrchestrator(cfg, uni, router, chains, pricer, scoring.NewEngine(scoreCfg, pricer, log), sink, log)
}

func TestRunScanProducesRankedResult(t *testing.T) {
	now := time.Now()
	router := &fakeRouter{
		quotes:  map[string]*contracts.Quote{"TST": quoteOf("TST")},
		bundles: map[string]*contracts.IndicatorBundle{"TST": bullishBundle("TST")},
	}
	chains := &fakeChains{chains: map[string][]contracts.OptionContract{"TST": scorableChain(now)}}
	sink := &fakeSink{}

	o := newTestOrchestrator(t, &fakeUniverse{snap: universeOf("TST")}, router, chains, sink)

	result, err := o.RunScan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Funnel.UniverseSize)
	assert.Equal(t, 1, result.Funnel.BasicFiltered)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "TST_C100", result.Candidates[0].Contract.Symbol)
	assert.NotZero(t, result.Candidates[0].Composite)
	assert.Empty(t, result.Skipped)

	require.Len(t, sink.results, 1, "completed result reaches the sink")

	last, ok := o.LastResult()
	require.True(t, ok)
	assert.Equal(t, result, last)
}

func TestOverlappingScanSkipped(t *testing.T) {
	now := time.Now()
	block := make(chan struct{})
	router := &fakeRouter{
		quotes:  map[string]*contracts.Quote{"TST": quoteOf("TST")},
		bundles: map[string]*contracts.IndicatorBundle{"TST": bullishBundle("TST")},
		block:   block,
	}
	chains := &fakeChains{chains: map[string][]contracts.OptionContract{"TST": scorableChain(now)}}
	sink := &fakeSink{}

	o := newTestOrchestrator(t, &fakeUniverse{snap: universeOf("TST")}, router, chains, sink)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, err := o.RunScan(context.Background())
		assert.NoError(t, err)
	}()

	// Wait for the first scan to park inside a quote fetch.
	require.Eventually(t, o.Running, time.Second, 5*time.Millisecond)

	_, err := o.RunScan(context.Background())
	assert.ErrorIs(t, err, contracts.ErrScanInProgress)

	close(block)
	<-firstDone

	assert.Len(t, sink.results, 1, "the skipped trigger must not duplicate results")
}

func TestSymbolFailureSkipsOnlyThatSymbol(t *testing.T) {
	now := time.Now()
	router := &fakeRouter{
		quotes: map[string]*contracts.Quote{
			"GOOD": quoteOf("GOOD"),
			// BAD has no quote anywhere in the stack.
		},
		bundles: map[string]*contracts.IndicatorBundle{"GOOD": bullishBundle("GOOD")},
	}
	chains := &fakeChains{chains: map[string][]contracts.OptionContract{"GOOD": scorableChain(now)}}

	o := newTestOrchestrator(t, &fakeUniverse{snap: universeOf("GOOD", "BAD")}, router, chains, nil)

	result, err := o.RunScan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"BAD"}, result.Skipped)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "TST_C100", result.Candidates[0].Contract.Symbol)
}

func TestNeutralSymbolCostsNoChainFetch(t *testing.T) {
	router := &fakeRouter{
		quotes: map[string]*contracts.Quote{"FLAT": quoteOf("FLAT")},
		bundles: map[string]*contracts.IndicatorBundle{
			"FLAT": {Symbol: "FLAT", RSI: 50, EMA: 100.05},
		},
	}
	chains := &fakeChains{chains: map[string][]contracts.OptionContract{}}

	o := newTestOrchestrator(t, &fakeUniverse{snap: universeOf("FLAT")}, router, chains, nil)

	result, err := o.RunScan(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Candidates)
	assert.Empty(t, result.Skipped)
	assert.Zero(t, chains.callCount(), "a neutral symbol must not fetch its chain")
}

func TestUniverseFailurePropagates(t *testing.T) {
	boom := errors.New("snapshot endpoint down")
	o := newTestOrchestrator(t, &fakeUniverse{err: boom}, &fakeRouter{}, &fakeChains{}, nil)

	_, err := o.RunScan(context.Background())
	assert.ErrorIs(t, err, boom)

	assert.False(t, o.Running(), "in-progress flag must clear after a failed scan")
}

func TestTopKTruncation(t *testing.T) {
	now := time.Now()
	symbols := []string{"AAA", "BBB", "CCC"}

	router := &fakeRouter{
		quotes:  make(map[string]*contracts.Quote),
		bundles: make(map[string]*contracts.IndicatorBundle),
	}
	chains := &fakeChains{chains: make(map[string][]contracts.OptionContract)}
	for _, s := range symbols {
		router.quotes[s] = quoteOf(s)
		router.bundles[s] = bullishBundle(s)
		chains.chains[s] = scorableChain(now)
	}

	o := newTestOrchestrator(t, &fakeUniverse{snap: universeOf(symbols...)}, router, chains, nil)
	o.config.TopK = 2

	result, err := o.RunScan(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Candidates, 2)
	assert.GreaterOrEqual(t, result.Candidates[0].Composite, result.Candidates[1].Composite)
}
