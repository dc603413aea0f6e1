package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhan-dev/strikescan/pkg/logger"
)

func TestCaptureOncePerTradingDay(t *testing.T) {
	fetcher := &groupedFetcher{symbols: []string{"AAPL"}}
	s := NewEODStore(fetcher, weekdayClock{}, nil, logger.NewNop(), 24*time.Hour)

	require.NoError(t, s.Capture(context.Background()))
	first := fetcher.calls.Load()
	require.Equal(t, int32(1), first)

	// Same trading day: a retried scheduler job must be a no-op.
	require.NoError(t, s.Capture(context.Background()))
	require.NoError(t, s.Capture(context.Background()))
	assert.Equal(t, first, fetcher.calls.Load())

	assert.NotEmpty(t, s.CapturedDay())
}

func TestEODGet(t *testing.T) {
	fetcher := &groupedFetcher{symbols: []string{"AAPL"}}
	s := NewEODStore(fetcher, weekdayClock{}, nil, logger.NewNop(), 24*time.Hour)

	_, ok := s.Get("AAPL")
	assert.False(t, ok, "cold store misses")

	require.NoError(t, s.Capture(context.Background()))

	bar, ok := s.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, 101.0, bar.Close)

	_, ok = s.Get("UNKNOWN")
	assert.False(t, ok)
}

func TestEODGetExpires(t *testing.T) {
	fetcher := &groupedFetcher{symbols: []string{"AAPL"}}
	s := NewEODStore(fetcher, weekdayClock{}, nil, logger.NewNop(), time.Millisecond)

	require.NoError(t, s.Capture(context.Background()))
	time.Sleep(5 * time.Millisecond)

	_, ok := s.Get("AAPL")
	assert.False(t, ok, "an aged capture must not serve")
}

func TestLastCompletedTradingDayNeverWeekend(t *testing.T) {
	s := NewEODStore(&groupedFetcher{}, weekdayClock{}, nil, logger.NewNop(), 24*time.Hour)

	day := s.lastCompletedTradingDay()
	wd := day.Weekday()
	assert.NotEqual(t, time.Saturday, wd)
	assert.NotEqual(t, time.Sunday, wd)
	assert.False(t, day.After(time.Now()))
}
