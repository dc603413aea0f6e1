package pricing

import (
	"math"
	"sync"
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// Engine computes Black-Scholes Greeks using a precomputed normal CDF
// table and a scan-scoped surface cache. The cache holds the transcendental
// intermediates for every (symbol, strike, expiry) triple a scan will
// touch, so per-contract Greeks become a lookup plus arithmetic.
type Engine struct {
	riskFree float64
	table    *cdfTable
	logger   *logger.Logger

	mu      sync.RWMutex
	surface map[surfaceKey]surfaceEntry
}

type surfaceKey struct {
	symbol string
	strike float64
	tYears float64
}

type surfaceEntry struct {
	d1, d2     float64
	nd1, nd2   float64
	pd1        float64
	spot, vol  float64
}

// NewEngine builds the CDF table and returns a ready engine.
func NewEngine(riskFree float64, log *logger.Logger) *Engine {
	return &Engine{
		riskFree: riskFree,
		table:    newCDFTable(),
		logger:   log.WithField("component", "pricing_engine"),
		surface:  make(map[surfaceKey]surfaceEntry),
	}
}

// BeginScan clears the surface cache. Call once at the start of every scan
// cycle; entries from a previous scan are priced off stale spots and must
// not be reused.
func (e *Engine) BeginScan() {
	e.mu.Lock()
	e.surface = make(map[surfaceKey]surfaceEntry)
	e.mu.Unlock()
}

// PrecomputeSurface caches the pricing intermediates for every contract in
// the batch against the given spot. Contracts with non-positive volatility
// or expiry are skipped; Greeks for those fall through to the direct path.
func (e *Engine) PrecomputeSurface(symbol string, spot float64, batch []contracts.OptionContract, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, c := range batch {
		t := YearsToExpiry(c.Expiry, now)
		if t <= 0 || c.ImpliedVolatility <= 0 || spot <= 0 {
			continue
		}
		key := surfaceKey{symbol: symbol, strike: c.Strike, tYears: t}
		if _, exists := e.surface[key]; exists {
			continue
		}
		e.surface[key] = e.computeEntry(spot, c.Strike, t, c.ImpliedVolatility)
	}
}

func (e *Engine) computeEntry(spot, strike, t, vol float64) surfaceEntry {
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (e.riskFree+vol*vol/2)*t) / (vol * sqrtT)
	d2 := d1 - vol*sqrtT
	return surfaceEntry{
		d1:   d1,
		d2:   d2,
		nd1:  e.table.CDF(d1),
		nd2:  e.table.CDF(d2),
		pd1:  pdf(d1),
		spot: spot,
		vol:  vol,
	}
}

// Greeks returns delta, gamma, theta, vega for one contract. Theta is per
// calendar day, vega per volatility point. Expired contracts get an
// intrinsic-only delta and zeros elsewhere.
func (e *Engine) Greeks(symbol string, spot, strike, tYears, vol float64, right contracts.OptionRight) contracts.Greeks {
	if tYears <= 0 {
		return expiredGreeks(spot, strike, right)
	}
	if spot <= 0 || strike <= 0 || vol <= 0 {
		return contracts.Greeks{}
	}

	entry, ok := e.lookup(symbol, strike, tYears, spot, vol)
	if !ok {
		entry = e.computeEntry(spot, strike, tYears, vol)
	}

	sqrtT := math.Sqrt(tYears)
	discount := math.Exp(-e.riskFree * tYears)

	g := contracts.Greeks{
		Gamma: entry.pd1 / (spot * vol * sqrtT),
		Vega:  spot * entry.pd1 * sqrtT / 100,
	}

	switch right {
	case contracts.Call:
		g.Delta = entry.nd1
		g.Theta = (-spot*entry.pd1*vol/(2*sqrtT) - e.riskFree*strike*discount*entry.nd2) / 365
	case contracts.Put:
		g.Delta = entry.nd1 - 1
		g.Theta = (-spot*entry.pd1*vol/(2*sqrtT) + e.riskFree*strike*discount*(1-entry.nd2)) / 365
	}

	return g
}

// lookup returns a cached entry only when its spot and vol match the
// request. A surface built for one spot must not price another.
func (e *Engine) lookup(symbol string, strike, tYears, spot, vol float64) (surfaceEntry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.surface[surfaceKey{symbol: symbol, strike: strike, tYears: tYears}]
	if !ok || entry.spot != spot || entry.vol != vol {
		return surfaceEntry{}, false
	}
	return entry, true
}

// Premium returns the Black-Scholes theoretical premium.
func (e *Engine) Premium(spot, strike, tYears, vol float64, right contracts.OptionRight) float64 {
	if tYears <= 0 {
		return intrinsic(spot, strike, right)
	}
	if spot <= 0 || strike <= 0 || vol <= 0 {
		return 0
	}

	entry := e.computeEntry(spot, strike, tYears, vol)
	discount := math.Exp(-e.riskFree * tYears)

	switch right {
	case contracts.Call:
		return spot*entry.nd1 - strike*discount*entry.nd2
	case contracts.Put:
		return strike*discount*(1-entry.nd2) - spot*(1-entry.nd1)
	}
	return 0
}

// SurfaceSize returns the number of cached surface entries.
func (e *Engine) SurfaceSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.surface)
}

func expiredGreeks(spot, strike float64, right contracts.OptionRight) contracts.Greeks {
	var delta float64
	switch right {
	case contracts.Call:
		if spot > strike {
			delta = 1
		}
	case contracts.Put:
		if spot < strike {
			delta = -1
		}
	}
	return contracts.Greeks{Delta: delta}
}

func intrinsic(spot, strike float64, right contracts.OptionRight) float64 {
	switch right {
	case contracts.Call:
		return math.Max(spot-strike, 0)
	case contracts.Put:
		return math.Max(strike-spot, 0)
	}
	return 0
}

// YearsToExpiry converts a contract expiry into year-fraction time.
func YearsToExpiry(expiry, now time.Time) float64 {
	return expiry.Sub(now).Hours() / (24 * 365)
}
