package universe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/metrics"
	"github.com/danielhan-dev/strikescan/pkg/logger"
	"github.com/danielhan-dev/strikescan/pkg/redis"
)

// Fetcher pulls the bulk full-market snapshot from upstream.
type Fetcher interface {
	FetchUniverse(ctx context.Context) (*contracts.UniverseSnapshot, error)
}

// Cache holds one TTL'd snapshot of the full tradable symbol set. Concurrent
// misses share a single underlying fetch; a failed refresh serves the last
// known-good snapshot when one exists. The snapshot is replaced atomically,
// never partially updated.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	warm    *redis.Cache
	logger  *logger.Logger

	mu       sync.RWMutex
	snapshot *contracts.UniverseSnapshot

	sf singleflight.Group
}

// NewCache creates a universe cache. The warm tier may be nil.
func NewCache(fetcher Fetcher, ttl time.Duration, warm *redis.Cache, log *logger.Logger) *Cache {
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		warm:    warm,
		logger:  log,
	}
}

// GetUniverse returns a valid snapshot, refreshing when expired. All
// concurrent callers of a cold cache ride the same fetch.
func (c *Cache) GetUniverse(ctx context.Context) (*contracts.UniverseSnapshot, error) {
	c.mu.RLock()
	snap := c.snapshot
	c.mu.RUnlock()

	if snap != nil && time.Since(snap.FetchedAt) < c.ttl {
		metrics.CacheHits.WithLabelValues(metrics.TierUniverse).Inc()
		return snap, nil
	}
	metrics.CacheMisses.WithLabelValues(metrics.TierUniverse).Inc()

	result, err, _ := c.sf.Do("universe", func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		// Serve stale over nothing: the router tags staleness downstream.
		if snap != nil {
			c.logger.WithError(err).Warn("Universe refresh failed, serving stale snapshot")
			return snap, nil
		}
		return nil, err
	}

	return result.(*contracts.UniverseSnapshot), nil
}

// refresh performs one upstream fetch, trying the warm tier first so a
// restarted process does not cold-start against the vendor.
func (c *Cache) refresh(ctx context.Context) (*contracts.UniverseSnapshot, error) {
	if c.warm != nil {
		var cached contracts.UniverseSnapshot
		found, err := c.warm.Get(ctx, redis.UniverseKey(), &cached)
		if err != nil {
			c.logger.WithError(err).Warn("Universe warm tier read failed")
		}
		if found && time.Since(cached.FetchedAt) < c.ttl {
			c.commit(&cached)
			return &cached, nil
		}
	}

	snap, err := c.fetcher.FetchUniverse(ctx)
	if err != nil {
		return nil, fmt.Errorf("universe refresh: %w", err)
	}

	c.commit(snap)

	if c.warm != nil {
		if err := c.warm.Set(ctx, redis.UniverseKey(), snap, c.ttl); err != nil {
			c.logger.WithError(err).Warn("Universe warm tier write failed")
		}
	}

	c.logger.WithField("count", len(snap.Entries)).Info("Universe snapshot refreshed")
	return snap, nil
}

func (c *Cache) commit(snap *contracts.UniverseSnapshot) {
	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
}

// Age returns the current snapshot's age, or false when the cache is cold.
func (c *Cache) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return 0, false
	}
	return time.Since(c.snapshot.FetchedAt), true
}
