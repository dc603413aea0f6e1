package scan

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/metrics"
	"github.com/danielhan-dev/strikescan/internal/scoring"
	"github.com/danielhan-dev/strikescan/internal/universe"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// ChainFetcher retrieves one underlying's option-chain snapshot.
type ChainFetcher interface {
	FetchOptionChain(ctx context.Context, underlying string) ([]contracts.OptionContract, error)
}

// QuoteRouter is the data-routing surface the scan reads through.
type QuoteRouter interface {
	GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error)
	GetIndicatorBundle(symbol string, period int) (*contracts.IndicatorBundle, error)
}

// UniverseSource serves the tradable symbol set.
type UniverseSource interface {
	GetUniverse(ctx context.Context) (*contracts.UniverseSnapshot, error)
}

// Pricer is the slice of the pricing engine the orchestrator drives.
type Pricer interface {
	BeginScan()
	Greeks(symbol string, spot, strike, tYears, vol float64, right contracts.OptionRight) contracts.Greeks
}

// Config tunes one orchestrator.
type Config struct {
	TopK            int
	IndicatorPeriod int
	FetchPoolSize   int
	Universe        universe.Criteria
}

// DefaultConfig returns the standard scan settings.
func DefaultConfig() Config {
	return Config{
		TopK:            10,
		IndicatorPeriod: 14,
		FetchPoolSize:   8,
		Universe: universe.Criteria{
			MinPrice:  5,
			MaxPrice:  1000,
			MinVolume: 500_000,
		},
	}
}

// Orchestrator runs full scan cycles: universe filter, per-symbol quote and
// chain resolution, scoring, ranking, and result delivery. At most one scan
// runs at a time; overlapping triggers are skipped, never queued.
type Orchestrator struct {
	config   Config
	universe UniverseSource
	router   QuoteRouter
	chains   ChainFetcher
	pricer   Pricer
	scorer   *scoring.Engine
	sink     contracts.ResultSink
	logger   *logger.Logger

	running atomic.Bool

	mu   sync.RWMutex
	last *contracts.ScanResult
}

// NewOrchestrator wires a scan orchestrator. sink may be nil when no
// persistence layer is attached.
func NewOrchestrator(
	config Config,
	universeSrc UniverseSource,
	router QuoteRouter,
	chains ChainFetcher,
	pricer Pricer,
	scorer *scoring.Engine,
	sink contracts.ResultSink,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:   config,
		universe: universeSrc,
		router:   router,
		chains:   chains,
		pricer:   pricer,
		scorer:   scorer,
		sink:     sink,
		logger:   log.WithField("component", "scan_orchestrator"),
	}
}

// RunScan executes one full scan cycle. A second invocation while one is in
// flight returns ErrScanInProgress immediately.
func (o *Orchestrator) RunScan(ctx context.Context) (*contracts.ScanResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		metrics.ScanSkipped.Inc()
		o.logger.Warn("scan trigger skipped, previous scan still running")
		return nil, contracts.ErrScanInProgress
	}
	defer o.running.Store(false)

	started := time.Now()
	o.pricer.BeginScan()

	snap, err := o.universe.GetUniverse(ctx)
	if err != nil {
		return nil, err
	}

	entries := universe.Filter(snap, o.config.Universe)
	o.logger.WithFields(map[string]interface{}{
		"universe": len(snap.Entries),
		"filtered": len(entries),
	}).Info("scan started")

	result := &contracts.ScanResult{
		StartedAt: started,
		Funnel: contracts.FunnelCounts{
			UniverseSize:  len(snap.Entries),
			BasicFiltered: len(entries),
		},
	}

	candidates, skipped, scored, above := o.scoreSymbols(ctx, entries)

	scoring.Rank(candidates)
	if len(candidates) > o.config.TopK {
		candidates = candidates[:o.config.TopK]
	}

	result.Candidates = candidates
	result.Skipped = skipped
	result.Funnel.Scored = scored
	result.Funnel.AboveThreshold = above
	result.Duration = time.Since(started)

	o.observe(result)
	o.deliver(ctx, result)

	o.mu.Lock()
	o.last = result
	o.mu.Unlock()

	return result, nil
}

// scoreSymbols fans symbol work out through a bounded pool. A symbol whose
// data cannot be resolved is skipped and recorded; it never aborts the batch.
func (o *Orchestrator) scoreSymbols(ctx context.Context, entries []contracts.UniverseEntry) (cands []contracts.ScoredCandidate, skipped []string, scored, above int) {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.FetchPoolSize)

	for _, entry := range entries {
		symbol := entry.Ticker
		g.Go(func() error {
			symCands, tally, err := o.scoreSymbol(gctx, symbol)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.logger.WithError(err).WithField("symbol", symbol).Debug("symbol skipped")
				skipped = append(skipped, symbol)
				return nil
			}
			cands = append(cands, symCands...)
			scored += tally.Scored
			above += tally.AboveThreshold
			return nil
		})
	}

	// Workers only ever return nil; the group is used for its pool limit.
	_ = g.Wait()
	return cands, skipped, scored, above
}

func (o *Orchestrator) scoreSymbol(ctx context.Context, symbol string) ([]contracts.ScoredCandidate, scoring.Tally, error) {
	quote, err := o.router.GetQuote(ctx, symbol)
	if err != nil {
		return nil, scoring.Tally{}, err
	}

	bundle, err := o.router.GetIndicatorBundle(symbol, o.config.IndicatorPeriod)
	if err != nil {
		return nil, scoring.Tally{}, err
	}

	// Direction gate runs before the chain fetch so neutral symbols cost
	// zero upstream calls.
	spot := quote.Mid()
	if _, ok := o.scorer.DirectionFor(bundle.RSI, spot, bundle.EMA); !ok {
		return nil, scoring.Tally{}, nil
	}

	chain, err := o.chains.FetchOptionChain(ctx, symbol)
	if err != nil {
		return nil, scoring.Tally{}, err
	}

	symCands, tally := o.scorer.Score(scoring.Input{
		Symbol:      symbol,
		Spot:        spot,
		QuoteSource: quote.Source,
		QuoteStale:  quote.IsStale,
		RSI:         bundle.RSI,
		EMA:         bundle.EMA,
		Chain:       chain,
		Now:         time.Now(),
	})
	return symCands, tally, nil
}

func (o *Orchestrator) observe(result *contracts.ScanResult) {
	metrics.ScanDuration.Observe(result.Duration.Seconds())
	metrics.FunnelCount.WithLabelValues("universe").Set(float64(result.Funnel.UniverseSize))
	metrics.FunnelCount.WithLabelValues("basic_filtered").Set(float64(result.Funnel.BasicFiltered))
	metrics.FunnelCount.WithLabelValues("scored").Set(float64(result.Funnel.Scored))
	metrics.FunnelCount.WithLabelValues("above_threshold").Set(float64(result.Funnel.AboveThreshold))

	o.logger.WithFields(map[string]interface{}{
		"duration_ms":     result.Duration.Milliseconds(),
		"universe":        result.Funnel.UniverseSize,
		"basic_filtered":  result.Funnel.BasicFiltered,
		"scored":          result.Funnel.Scored,
		"above_threshold": result.Funnel.AboveThreshold,
		"candidates":      len(result.Candidates),
		"skipped":         len(result.Skipped),
	}).Info("scan completed")
}

func (o *Orchestrator) deliver(ctx context.Context, result *contracts.ScanResult) {
	if o.sink == nil {
		return
	}
	if err := o.sink.Store(ctx, result); err != nil {
		o.logger.WithError(err).Error("scan result delivery failed")
	}
}

// LastResult returns the most recent completed scan result, if any.
func (o *Orchestrator) LastResult() (*contracts.ScanResult, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return nil, false
	}
	return o.last, true
}

// Running reports whether a scan is currently in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}
