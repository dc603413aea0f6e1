package history

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// weekdayClock is always open on weekdays, closed on weekends.
type weekdayClock struct{}

func (weekdayClock) IsOpen(t time.Time) bool {
	if !(weekdayClock{}).IsTradingDay(t) {
		return false
	}
	h, m := t.Hour(), t.Minute()
	after := h > 9 || (h == 9 && m >= 30)
	return after && h < 16
}

func (weekdayClock) IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func (weekdayClock) Location() *time.Location { return time.UTC }

// groupedFetcher returns one bar per symbol per requested day, optionally
// failing specific days.
type groupedFetcher struct {
	calls    atomic.Int32
	symbols  []string
	failDays map[string]error
	errAll   error
}

func (f *groupedFetcher) FetchGroupedDaily(ctx context.Context, day time.Time) (map[string]contracts.HistoricalBar, error) {
	f.calls.Add(1)
	if f.errAll != nil {
		return nil, f.errAll
	}
	if err, ok := f.failDays[day.Format("2006-01-02")]; ok {
		return nil, err
	}
	out := make(map[string]contracts.HistoricalBar, len(f.symbols))
	for i, s := range f.symbols {
		out[s] = contracts.HistoricalBar{
			Timestamp: day,
			Open:      100,
			High:      102,
			Low:       99,
			Close:     101 + float64(i),
			Volume:    1_000_000,
		}
	}
	return out, nil
}

func newStore(f BarFetcher, lookback, minDays int) *RollingStore {
	return NewRollingStore(f, weekdayClock{}, nil, logger.NewNop(), 24*time.Hour, lookback, minDays)
}

func TestRefreshBuildsAscendingSeries(t *testing.T) {
	fetcher := &groupedFetcher{symbols: []string{"AAPL", "MSFT"}}
	s := newStore(fetcher, 25, 20)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 2, s.Len())

	series, ok := s.GetSeries("AAPL")
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(series.Bars), 20)

	for i := 1; i < len(series.Bars); i++ {
		assert.True(t, series.Bars[i-1].Timestamp.Before(series.Bars[i].Timestamp),
			"bars must ascend strictly by timestamp")
	}
	assert.Equal(t, series.Bars[0].Timestamp, series.RangeStart)
	assert.Equal(t, series.Bars[len(series.Bars)-1].Timestamp, series.RangeEnd)
}

func TestRefreshOneBulkFetchPerDay(t *testing.T) {
	fetcher := &groupedFetcher{symbols: []string{"AAPL", "MSFT", "NVDA"}}
	s := newStore(fetcher, 25, 20)

	require.NoError(t, s.Refresh(context.Background()))

	// One grouped call per trading day, regardless of symbol count.
	assert.Equal(t, int32(25), fetcher.calls.Load())
}

func TestShortRefreshRejectedPriorCacheKept(t *testing.T) {
	fetcher := &groupedFetcher{symbols: []string{"AAPL"}}
	s := newStore(fetcher, 25, 20)
	require.NoError(t, s.Refresh(context.Background()))

	before, ok := s.GetSeries("AAPL")
	require.True(t, ok)

	// Next cycle: upstream fails every day.
	fetcher.errAll = errors.New("aggregates endpoint down")
	err := s.Refresh(context.Background())

	var verr *contracts.ValidationError
	require.ErrorAs(t, err, &verr)

	after, ok := s.GetSeries("AAPL")
	require.True(t, ok, "a rejected refresh must leave the prior cache standing")
	assert.Equal(t, before.LastRefreshedAt, after.LastRefreshedAt)
}

func TestPartialDayFailuresTolerated(t *testing.T) {
	fetcher := &groupedFetcher{symbols: []string{"AAPL"}}
	s := newStore(fetcher, 25, 20)

	// Fail a handful of days; 25 lookback days minus a few still clears 20.
	fetcher.failDays = map[string]error{}
	days := s.tradingDays()
	for _, d := range days[:3] {
		fetcher.failDays[d.Format("2006-01-02")] = errors.New("bad day")
	}

	require.NoError(t, s.Refresh(context.Background()))

	series, ok := s.GetSeries("AAPL")
	require.True(t, ok)
	assert.Len(t, series.Bars, 22)
}

func TestStaleReadMissesAndKicksRefresh(t *testing.T) {
	fetcher := &groupedFetcher{symbols: []string{"AAPL"}}
	s := NewRollingStore(fetcher, weekdayClock{}, nil, logger.NewNop(), 200*time.Millisecond, 25, 20)

	require.NoError(t, s.Refresh(context.Background()))
	time.Sleep(250 * time.Millisecond) // pass the TTL

	_, ok := s.GetSeries("AAPL")
	assert.False(t, ok, "a stale read reports a miss, it does not block")

	// The detached refresh eventually repopulates; a later read succeeds
	// once lastRefreshedAt is fresh again.
	require.Eventually(t, func() bool {
		_, ok := s.GetSeries("AAPL")
		return ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestBuildSeriesDeduplicatesByDay(t *testing.T) {
	day := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	bars := []contracts.HistoricalBar{
		{Timestamp: day.AddDate(0, 0, 1), Close: 102},
		{Timestamp: day, Close: 100},
		{Timestamp: day.Add(2 * time.Hour), Close: 101}, // same trading day
	}

	series := buildSeries("AAPL", bars, time.Now())
	require.Len(t, series.Bars, 2)
	assert.Equal(t, 101.0, series.Bars[0].Close, "last write for a day wins")
	assert.Equal(t, 102.0, series.Bars[1].Close)
}

func TestTradingDaysSkipWeekends(t *testing.T) {
	s := newStore(&groupedFetcher{}, 10, 5)
	days := s.tradingDays()

	require.Len(t, days, 10)
	for _, d := range days {
		wd := d.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}
	for i := 1; i < len(days); i++ {
		assert.True(t, days[i-1].Before(days[i]))
	}
}
