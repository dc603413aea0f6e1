package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/metrics"
	"github.com/danielhan-dev/strikescan/pkg/logger"
	"github.com/danielhan-dev/strikescan/pkg/redis"
)

// Refresh retry discipline: bounded attempts with linear backoff, then the
// cycle gives up and the previous valid cache stands.
const (
	refreshAttempts = 3
	refreshBackoff  = 10 * time.Second
)

// BarFetcher pulls all symbols' bars for one trading day in a single call.
type BarFetcher interface {
	FetchGroupedDaily(ctx context.Context, day time.Time) (map[string]contracts.HistoricalBar, error)
}

// RollingStore is the rolling N-day bar cache. It is refreshed wholesale on
// a schedule by walking each trading day in the lookback window with one
// bulk fetch per day. A read past the TTL kicks a detached background
// refresh and reports a miss; it never blocks the caller.
type RollingStore struct {
	fetcher  BarFetcher
	clock    contracts.MarketClock
	warm     *redis.Cache
	logger   *logger.Logger
	ttl      time.Duration
	lookback int
	minDays  int

	mu              sync.RWMutex
	series          map[string]*contracts.SymbolSeries
	lastRefreshedAt time.Time

	refreshing atomic.Bool
}

// NewRollingStore creates the rolling bar cache. The warm tier may be nil.
func NewRollingStore(fetcher BarFetcher, clock contracts.MarketClock, warm *redis.Cache, log *logger.Logger, ttl time.Duration, lookbackDays, minDays int) *RollingStore {
	return &RollingStore{
		fetcher:  fetcher,
		clock:    clock,
		warm:     warm,
		logger:   log,
		ttl:      ttl,
		lookback: lookbackDays,
		minDays:  minDays,
		series:   make(map[string]*contracts.SymbolSeries),
	}
}

// GetSeries returns a symbol's bar series. A stale or absent series is a
// miss; staleness additionally kicks one detached background refresh so the
// next read succeeds. The caller's fallback chain covers the gap.
func (s *RollingStore) GetSeries(symbol string) (*contracts.SymbolSeries, bool) {
	s.mu.RLock()
	series, exists := s.series[symbol]
	age := time.Since(s.lastRefreshedAt)
	s.mu.RUnlock()

	if age > s.ttl {
		metrics.CacheMisses.WithLabelValues(metrics.TierBars).Inc()
		s.kickRefresh()
		return nil, false
	}
	if !exists {
		metrics.CacheMisses.WithLabelValues(metrics.TierBars).Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(metrics.TierBars).Inc()
	return series, true
}

// Len returns the number of cached symbol series.
func (s *RollingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}

// kickRefresh starts one detached refresh unless one is already running.
// The detached task owns its own logging and retry policy.
func (s *RollingStore) kickRefresh() {
	if !s.refreshing.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer s.refreshing.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := s.RefreshWithRetry(ctx); err != nil {
			s.logger.WithError(err).Error("Background bar refresh gave up for this cycle")
		}
	}()
}

// RefreshWithRetry runs Refresh with the bounded linear backoff, keeping
// the previous valid cache on exhaustion.
func (s *RollingStore) RefreshWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= refreshAttempts; attempt++ {
		lastErr = s.Refresh(ctx)
		if lastErr == nil {
			return nil
		}

		s.logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"error":   lastErr.Error(),
		}).Warn("Bar refresh attempt failed")

		if attempt == refreshAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * refreshBackoff):
		}
	}
	return lastErr
}

// Refresh rebuilds the cache by iterating each trading day in the lookback
// window with one bulk fetch per day. The result replaces the previous
// cache wholesale, but only when it carries at least the minimum number of
// trading days; a short result usually means a partial or failed fetch,
// not a real market.
func (s *RollingStore) Refresh(ctx context.Context) error {
	days := s.tradingDays()

	accumulated := make(map[string][]contracts.HistoricalBar)
	fetchedDays := 0

	for _, day := range days {
		bars, err := s.fetcher.FetchGroupedDaily(ctx, day)
		if err != nil {
			// One bad day is skipped; the minimum-day gate below decides
			// whether the refresh as a whole is usable.
			s.logger.WithFields(map[string]interface{}{
				"day":   day.Format("2006-01-02"),
				"error": err.Error(),
			}).Warn("Skipping trading day in bar refresh")
			continue
		}

		for symbol, bar := range bars {
			accumulated[symbol] = append(accumulated[symbol], bar)
		}
		fetchedDays++
	}

	if fetchedDays < s.minDays {
		return &contracts.ValidationError{
			Subject: "rolling bar refresh",
			Reason:  fmt.Sprintf("only %d trading days fetched, need %d", fetchedDays, s.minDays),
		}
	}

	now := time.Now()
	fresh := make(map[string]*contracts.SymbolSeries, len(accumulated))
	for symbol, bars := range accumulated {
		series := buildSeries(symbol, bars, now)
		if len(series.Bars) < s.minDays {
			continue
		}
		fresh[symbol] = series
	}

	if len(fresh) == 0 {
		return &contracts.ValidationError{Subject: "rolling bar refresh", Reason: "no symbol reached the minimum bar count"}
	}

	s.mu.Lock()
	s.series = fresh
	s.lastRefreshedAt = now
	s.mu.Unlock()

	if s.warm != nil {
		s.warmStore(ctx, fresh)
	}

	s.logger.WithFields(map[string]interface{}{
		"symbols": len(fresh),
		"days":    fetchedDays,
	}).Info("Rolling bar cache refreshed")

	return nil
}

// tradingDays lists the lookback window's trading days, oldest first,
// ending at the most recent completed trading day.
func (s *RollingStore) tradingDays() []time.Time {
	loc := s.clock.Location()
	day := time.Now().In(loc)

	// The running session has no complete daily bar yet.
	day = day.AddDate(0, 0, -1)

	var days []time.Time
	for len(days) < s.lookback {
		if s.clock.IsTradingDay(day) {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, -1)
	}

	// Reverse into ascending order.
	for i, j := 0, len(days)-1; i < j; i, j = i+1, j-1 {
		days[i], days[j] = days[j], days[i]
	}
	return days
}

// buildSeries sorts bars ascending and deduplicates by trading day, keeping
// the last write for a day.
func buildSeries(symbol string, bars []contracts.HistoricalBar, refreshedAt time.Time) *contracts.SymbolSeries {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	deduped := bars[:0]
	for _, bar := range bars {
		day := bar.Timestamp.Format("2006-01-02")
		if len(deduped) > 0 && deduped[len(deduped)-1].Timestamp.Format("2006-01-02") == day {
			deduped[len(deduped)-1] = bar
			continue
		}
		deduped = append(deduped, bar)
	}

	series := &contracts.SymbolSeries{
		Symbol:          symbol,
		Bars:            deduped,
		LastRefreshedAt: refreshedAt,
	}
	if len(deduped) > 0 {
		series.RangeStart = deduped[0].Timestamp
		series.RangeEnd = deduped[len(deduped)-1].Timestamp
	}
	return series
}

func (s *RollingStore) warmStore(ctx context.Context, fresh map[string]*contracts.SymbolSeries) {
	stored := 0
	for symbol, series := range fresh {
		if err := s.warm.Set(ctx, redis.SeriesKey(symbol), series, s.ttl); err != nil {
			s.logger.WithError(err).Warn("Bar warm tier write failed")
			return
		}
		stored++
	}
	s.logger.WithField("count", stored).Debug("Bar series written to warm tier")
}
