package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/feed/quotecache"
	"github.com/danielhan-dev/strikescan/internal/history"
	"github.com/danielhan-dev/strikescan/internal/indicators"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// FeedSubscriber is the slice of the streaming client the router needs.
type FeedSubscriber interface {
	Subscribe(symbols ...string) error
	IsSubscribed(symbol string) bool
	Healthy() bool
}

// Router resolves quotes through the tiered data stack. During market hours
// it prefers the live feed cache, then the REST quote cache, then history.
// When the market is closed the live tier is skipped entirely.
type Router struct {
	clock  contracts.MarketClock
	feed   FeedSubscriber
	live   *quotecache.Cache
	rest   *quotecache.Cache
	bars   *history.RollingStore
	eod    *history.EODStore
	grace  time.Duration
	logger *logger.Logger
}

// NewRouter wires the router over its data tiers. feed may be nil when the
// process runs without a streaming connection (REST-only mode).
func NewRouter(
	clock contracts.MarketClock,
	feed FeedSubscriber,
	live, rest *quotecache.Cache,
	bars *history.RollingStore,
	eod *history.EODStore,
	grace time.Duration,
	log *logger.Logger,
) *Router {
	return &Router{
		clock:  clock,
		feed:   feed,
		live:   live,
		rest:   rest,
		bars:   bars,
		eod:    eod,
		grace:  grace,
		logger: log.WithField("component", "marketdata_router"),
	}
}

// GetQuote returns the best available quote for symbol, tagged with the
// tier that produced it. Staleness on the returned quote means a lower tier
// served while the market was open.
func (r *Router) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	open := r.clock.IsOpen(time.Now())

	if open {
		if q, ok := r.liveQuote(ctx, symbol); ok {
			return q, nil
		}
	}

	if q, ok := r.rest.Peek(symbol); ok {
		q.Source = contracts.ProvenanceCachedREST
		q.IsStale = open && q.IsStale
		return q, nil
	}

	if q, ok := r.historicalQuote(symbol, open); ok {
		return q, nil
	}

	// Last resort: a stale live value beats nothing at all.
	if q, ok := r.live.Peek(symbol); ok {
		q.Source = contracts.ProvenanceFallback
		q.IsStale = true
		r.logger.WithField("symbol", symbol).Warn("serving stale fallback quote")
		return q, nil
	}

	return nil, fmt.Errorf("quote %s: %w", symbol, contracts.ErrNoData)
}

// liveQuote subscribes the symbol if needed, waits a short grace period for
// the first event, and reads the live cache.
func (r *Router) liveQuote(ctx context.Context, symbol string) (*contracts.Quote, bool) {
	if r.feed == nil || !r.feed.Healthy() {
		return nil, false
	}

	if !r.feed.IsSubscribed(symbol) {
		if err := r.feed.Subscribe(symbol); err != nil {
			r.logger.WithError(err).WithField("symbol", symbol).Warn("live subscribe failed")
			return nil, false
		}
		if !r.waitQuote(ctx, symbol) {
			return nil, false
		}
	}

	q, ok := r.live.Get(symbol)
	if !ok {
		return nil, false
	}
	q.Source = contracts.ProvenanceLive
	q.IsStale = false
	return q, true
}

// waitQuote polls the live cache until a fresh quote lands or the grace
// window expires.
func (r *Router) waitQuote(ctx context.Context, symbol string) bool {
	if r.grace <= 0 {
		_, ok := r.live.Get(symbol)
		return ok
	}

	deadline := time.Now().Add(r.grace)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, ok := r.live.Get(symbol); ok {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (r *Router) historicalQuote(symbol string, open bool) (*contracts.Quote, bool) {
	if series, ok := r.bars.GetSeries(symbol); ok {
		if px, found := series.LatestClose(); found {
			last := series.Bars[len(series.Bars)-1]
			return &contracts.Quote{
				Symbol:    symbol,
				Last:      px,
				Volume:    last.Volume,
				Timestamp: last.Timestamp,
				Source:    contracts.ProvenanceHistorical,
				IsStale:   open,
			}, true
		}
	}

	if bar, ok := r.eod.Get(symbol); ok {
		return &contracts.Quote{
			Symbol:    symbol,
			Last:      bar.Close,
			Volume:    bar.Volume,
			Timestamp: bar.Timestamp,
			Source:    contracts.ProvenanceHistorical,
			IsStale:   open,
		}, true
	}

	return nil, false
}

// GetIndicatorBundle computes the standard indicator set over the symbol's
// rolling bar history.
func (r *Router) GetIndicatorBundle(symbol string, period int) (*contracts.IndicatorBundle, error) {
	series, ok := r.bars.GetSeries(symbol)
	if !ok {
		return nil, fmt.Errorf("indicators %s: %w", symbol, contracts.ErrNoData)
	}

	closes := series.Closes()
	return &contracts.IndicatorBundle{
		Symbol: symbol,
		Period: period,
		RSI:    indicators.RSI(closes, period),
		EMA:    indicators.EMA(closes, period),
		ATR:    indicators.ATR(series.Bars, period),
		Bars:   series.Bars,
	}, nil
}
