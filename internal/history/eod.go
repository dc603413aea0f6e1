package history

import (
	"context"
	"sync"
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/metrics"
	"github.com/danielhan-dev/strikescan/pkg/logger"
	"github.com/danielhan-dev/strikescan/pkg/redis"
)

// EODStore captures one end-of-day snapshot per trading day at a fixed
// exchange-local instant. Re-capture attempts on the same trading day are
// no-ops, so a retried scheduler job cannot double-write.
type EODStore struct {
	fetcher BarFetcher
	clock   contracts.MarketClock
	warm    *redis.Cache
	logger  *logger.Logger
	ttl     time.Duration

	mu          sync.RWMutex
	snapshot    map[string]contracts.HistoricalBar
	capturedDay string
	capturedAt  time.Time
}

// NewEODStore creates the EOD snapshot cache. The warm tier may be nil.
func NewEODStore(fetcher BarFetcher, clock contracts.MarketClock, warm *redis.Cache, log *logger.Logger, ttl time.Duration) *EODStore {
	return &EODStore{
		fetcher: fetcher,
		clock:   clock,
		warm:    warm,
		logger:  log,
		ttl:     ttl,
	}
}

// Capture takes the daily snapshot for the most recent completed trading
// day. Calling it again on the same trading day does nothing.
func (s *EODStore) Capture(ctx context.Context) error {
	day := s.lastCompletedTradingDay()
	dayKey := day.Format("2006-01-02")

	s.mu.RLock()
	already := s.capturedDay == dayKey
	s.mu.RUnlock()
	if already {
		s.logger.WithField("day", dayKey).Debug("EOD snapshot already captured for this trading day")
		return nil
	}

	bars, err := s.fetcher.FetchGroupedDaily(ctx, day)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snapshot = bars
	s.capturedDay = dayKey
	s.capturedAt = time.Now()
	s.mu.Unlock()

	if s.warm != nil {
		if err := s.warm.Set(ctx, redis.EODKey(dayKey), bars, s.ttl); err != nil {
			s.logger.WithError(err).Warn("EOD warm tier write failed")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"day":     dayKey,
		"symbols": len(bars),
	}).Info("EOD snapshot captured")

	return nil
}

// Get returns a symbol's EOD bar, or a miss when no capture exists, the
// symbol is absent, or the capture has aged past the TTL.
func (s *EODStore) Get(symbol string) (*contracts.HistoricalBar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil || time.Since(s.capturedAt) > s.ttl {
		metrics.CacheMisses.WithLabelValues(metrics.TierEOD).Inc()
		return nil, false
	}

	bar, exists := s.snapshot[symbol]
	if !exists {
		metrics.CacheMisses.WithLabelValues(metrics.TierEOD).Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(metrics.TierEOD).Inc()
	return &bar, true
}

// CapturedDay returns the trading day of the current snapshot, or "" when
// the cache is cold.
func (s *EODStore) CapturedDay() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capturedDay
}

// lastCompletedTradingDay walks back from today in the exchange's own time
// zone to the most recent day whose session has fully closed. A trading-day
// morning before the open does not count as completed.
func (s *EODStore) lastCompletedTradingDay() time.Time {
	loc := s.clock.Location()
	now := time.Now().In(loc)

	day := now
	if !s.clock.IsTradingDay(day) || !s.sessionClosed(now) {
		day = day.AddDate(0, 0, -1)
	}
	for !s.clock.IsTradingDay(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// sessionClosed reports whether today's session has both opened and closed
// by now. Probing on the half hour finds the open for any venue whose
// session lasts at least 30 minutes.
func (s *EODStore) sessionClosed(now time.Time) bool {
	if s.clock.IsOpen(now) {
		return false
	}
	probe := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for probe.Before(now) {
		if s.clock.IsOpen(probe) {
			return true
		}
		probe = probe.Add(30 * time.Minute)
	}
	return false
}
