package universe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

type countingFetcher struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	snap  func() *contracts.UniverseSnapshot
}

func (f *countingFetcher) FetchUniverse(ctx context.Context) (*contracts.UniverseSnapshot, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.snap(), nil
}

func snapshotOf(tickers ...string) func() *contracts.UniverseSnapshot {
	return func() *contracts.UniverseSnapshot {
		snap := &contracts.UniverseSnapshot{FetchedAt: time.Now()}
		for _, t := range tickers {
			snap.Entries = append(snap.Entries, contracts.UniverseEntry{Ticker: t, Price: 50, Volume: 1_000_000})
		}
		return snap
	}
}

func TestGetUniverseWithinTTLNoFetch(t *testing.T) {
	fetcher := &countingFetcher{snap: snapshotOf("AAPL")}
	c := NewCache(fetcher, time.Hour, nil, logger.NewNop())

	_, err := c.GetUniverse(context.Background())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := c.GetUniverse(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), fetcher.calls.Load(), "reads within TTL must not refetch")
}

func TestConcurrentMissesSingleFetch(t *testing.T) {
	fetcher := &countingFetcher{snap: snapshotOf("AAPL"), delay: 50 * time.Millisecond}
	c := NewCache(fetcher, time.Hour, nil, logger.NewNop())

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			snap, err := c.GetUniverse(context.Background())
			assert.NoError(t, err)
			assert.Len(t, snap.Entries, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.calls.Load(), "concurrent misses must share one fetch")
}

func TestFailedRefreshServesStale(t *testing.T) {
	fetcher := &countingFetcher{snap: snapshotOf("AAPL")}
	c := NewCache(fetcher, time.Nanosecond, nil, logger.NewNop())

	first, err := c.GetUniverse(context.Background())
	require.NoError(t, err)

	time.Sleep(time.Millisecond) // expire the snapshot
	fetcher.err = errors.New("snapshot endpoint down")

	second, err := c.GetUniverse(context.Background())
	require.NoError(t, err, "stale beats nothing")
	assert.Equal(t, first, second)
}

func TestColdCacheFailurePropagates(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("snapshot endpoint down"), snap: snapshotOf()}
	c := NewCache(fetcher, time.Hour, nil, logger.NewNop())

	_, err := c.GetUniverse(context.Background())
	require.Error(t, err)
}

func TestFilterCriteria(t *testing.T) {
	snap := &contracts.UniverseSnapshot{Entries: []contracts.UniverseEntry{
		{Ticker: "PENNY", Price: 0.50, Volume: 2_000_000},
		{Ticker: "THIN", Price: 50, Volume: 1_000},
		{Ticker: "GOOD", Price: 50, Volume: 2_000_000, MarketCap: 5e9},
		{Ticker: "SMALL", Price: 50, Volume: 2_000_000, MarketCap: 1e8},
		{Ticker: "PRICY", Price: 5000, Volume: 2_000_000},
	}}

	got := Filter(snap, Criteria{
		MinPrice:     5,
		MaxPrice:     1000,
		MinVolume:    500_000,
		MinMarketCap: 1e9,
	})

	require.Len(t, got, 1)
	assert.Equal(t, "GOOD", got[0].Ticker)
}

func TestFilterAllowList(t *testing.T) {
	snap := &contracts.UniverseSnapshot{Entries: []contracts.UniverseEntry{
		{Ticker: "AAPL", Price: 150, Volume: 2_000_000},
		{Ticker: "MSFT", Price: 300, Volume: 2_000_000},
	}}

	got := Filter(snap, Criteria{AllowList: []string{"MSFT"}})
	require.Len(t, got, 1)
	assert.Equal(t, "MSFT", got[0].Ticker)
}

func TestFilterZeroCriteriaPassesAll(t *testing.T) {
	snap := snapshotOf("A", "B", "C")()
	got := Filter(snap, Criteria{})
	assert.Len(t, got, 3)
}
