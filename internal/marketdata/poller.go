package marketdata

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/feed/quotecache"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// QuoteFetcher is the slice of the REST client the poller needs.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (*contracts.Quote, error)
}

// Poller keeps the REST quote cache warm for a tracked symbol set. It is
// the backstop for symbols the streaming feed is not delivering, and the
// only quote source when the feed is down.
type Poller struct {
	fetcher  QuoteFetcher
	cache    *quotecache.Cache
	limiter  *rate.Limiter
	interval time.Duration
	logger   *logger.Logger

	mu      sync.RWMutex
	symbols map[string]struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPoller creates a poller that sweeps the tracked set every interval,
// pacing individual requests at rps requests per second.
func NewPoller(fetcher QuoteFetcher, cache *quotecache.Cache, interval time.Duration, rps float64, log *logger.Logger) *Poller {
	return &Poller{
		fetcher:  fetcher,
		cache:    cache,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		interval: interval,
		logger:   log.WithField("component", "rest_poller"),
		symbols:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
	}
}

// Track adds symbols to the polling set. Already-tracked symbols are no-ops.
func (p *Poller) Track(symbols ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range symbols {
		p.symbols[s] = struct{}{}
	}
}

// Untrack removes symbols from the polling set.
func (p *Poller) Untrack(symbols ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range symbols {
		delete(p.symbols, s)
	}
}

// Tracked returns a snapshot of the polling set.
func (p *Poller) Tracked() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.symbols))
	for s := range p.symbols {
		out = append(out, s)
	}
	return out
}

// Start launches the polling loop. It returns immediately.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.loop(ctx)
	p.logger.WithField("interval", p.interval.String()).Info("REST quote poller started")
}

// Stop terminates the polling loop and waits for it to exit.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

// sweep fetches every tracked symbol once, rate limited. Individual fetch
// failures are logged and skipped so one bad symbol cannot stall the sweep.
func (p *Poller) sweep(ctx context.Context) {
	for _, symbol := range p.Tracked() {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case <-p.stopCh:
			return
		default:
		}

		q, err := p.fetcher.FetchQuote(ctx, symbol)
		if err != nil {
			p.logger.WithError(err).WithField("symbol", symbol).Warn("REST quote fetch failed")
			continue
		}

		p.cache.Apply(symbol, quotecache.Update{
			Bid:       ptrIfPositive(q.Bid),
			Ask:       ptrIfPositive(q.Ask),
			Last:      ptrIfPositive(q.Last),
			Volume:    &q.Volume,
			Timestamp: q.Timestamp,
			Source:    contracts.ProvenanceCachedREST,
		})
	}
}

func ptrIfPositive(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}
