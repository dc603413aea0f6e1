package quotecache

import (
	"sync"
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/metrics"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// Cache is the in-memory live quote cache. Book updates and trade updates
// arrive on separate event streams and are merged field-wise: a trade never
// clobbers the book and vice versa. Per-symbol, last write wins.
type Cache struct {
	mu        sync.RWMutex
	quotes    map[string]*contracts.Quote
	freshness time.Duration
	logger    *logger.Logger
}

// Update is a partial quote; nil fields are left untouched on merge.
type Update struct {
	Bid       *float64
	Ask       *float64
	Last      *float64
	Volume    *int64
	Timestamp time.Time
	Source    contracts.Provenance
}

// New creates a quote cache with the given freshness threshold.
func New(freshness time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		quotes:    make(map[string]*contracts.Quote),
		freshness: freshness,
		logger:    log,
	}
}

// Get returns the quote for a symbol, or a miss when the symbol is absent
// or older than the freshness threshold. Callers must treat a miss as
// "fall back", never as a zero price.
func (c *Cache) Get(symbol string) (*contracts.Quote, bool) {
	c.mu.RLock()
	q, exists := c.quotes[symbol]
	c.mu.RUnlock()

	if !exists {
		metrics.CacheMisses.WithLabelValues(metrics.TierQuote).Inc()
		return nil, false
	}

	if time.Since(q.Timestamp) > c.freshness {
		metrics.CacheMisses.WithLabelValues(metrics.TierQuote).Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(metrics.TierQuote).Inc()
	cp := *q
	return &cp, true
}

// Peek returns the quote regardless of freshness, with IsStale set when the
// freshness window has passed. The router uses this for its fallback chain.
func (c *Cache) Peek(symbol string) (*contracts.Quote, bool) {
	c.mu.RLock()
	q, exists := c.quotes[symbol]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	cp := *q
	cp.IsStale = time.Since(q.Timestamp) > c.freshness
	return &cp, true
}

// Apply merges the non-nil fields of an update into the symbol's entry,
// creating the entry if absent.
func (c *Cache) Apply(symbol string, u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, exists := c.quotes[symbol]
	if !exists {
		q = &contracts.Quote{Symbol: symbol}
		c.quotes[symbol] = q
	}

	if u.Bid != nil {
		q.Bid = *u.Bid
	}
	if u.Ask != nil {
		q.Ask = *u.Ask
	}
	if u.Last != nil {
		q.Last = *u.Last
	}
	if u.Volume != nil {
		q.Volume = *u.Volume
	}

	ts := u.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	// Arrival order is the only ordering guarantee upstream gives us, so
	// the entry timestamp always advances with the latest write.
	if ts.After(q.Timestamp) {
		q.Timestamp = ts
	}
	if u.Source != "" {
		q.Source = u.Source
	}
	q.IsStale = false
}

// Len returns the number of quotes in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}

// CleanStale removes entries past the freshness threshold and returns the
// number removed.
func (c *Cache) CleanStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	count := 0
	for symbol, q := range c.quotes {
		if now.Sub(q.Timestamp) > c.freshness {
			delete(c.quotes, symbol)
			count++
		}
	}

	if count > 0 {
		c.logger.WithField("count", count).Debug("Cleaned stale quotes from cache")
	}

	return count
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{TotalCount: len(c.quotes)}
	now := time.Now()
	for _, q := range c.quotes {
		if now.Sub(q.Timestamp) > c.freshness {
			stats.StaleCount++
		}
	}
	stats.FreshCount = stats.TotalCount - stats.StaleCount
	return stats
}

// Stats represents cache statistics.
type Stats struct {
	TotalCount int `json:"total_count"`
	FreshCount int `json:"fresh_count"`
	StaleCount int `json:"stale_count"`
}
