package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/feed/quotecache"
	"github.com/danielhan-dev/strikescan/internal/history"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// fixedClock reports one open/closed state regardless of time.
type fixedClock struct{ open bool }

func (c fixedClock) IsOpen(t time.Time) bool       { return c.open }
func (c fixedClock) IsTradingDay(t time.Time) bool { return true }
func (c fixedClock) Location() *time.Location      { return time.UTC }

// stubFeed is an always-healthy feed whose subscriptions land nowhere.
type stubFeed struct {
	healthy    bool
	subscribed map[string]bool
}

func (f *stubFeed) Subscribe(symbols ...string) error {
	for _, s := range symbols {
		f.subscribed[s] = true
	}
	return nil
}
func (f *stubFeed) IsSubscribed(symbol string) bool { return f.subscribed[symbol] }
func (f *stubFeed) Healthy() bool                   { return f.healthy }

type noBars struct{}

func (noBars) FetchGroupedDaily(ctx context.Context, day time.Time) (map[string]contracts.HistoricalBar, error) {
	return map[string]contracts.HistoricalBar{}, nil
}

type routerFixture struct {
	live, rest *quotecache.Cache
	bars       *history.RollingStore
	eod        *history.EODStore
	feed       *stubFeed
}

func newRouterFixture(t *testing.T, open bool) (*Router, *routerFixture) {
	t.Helper()
	log := logger.NewNop()
	clock := fixedClock{open: open}

	fix := &routerFixture{
		live: quotecache.New(10*time.Second, log),
		rest: quotecache.New(time.Minute, log),
		bars: history.NewRollingStore(noBars{}, clock, nil, log, 24*time.Hour, 25, 20),
		eod:  history.NewEODStore(noBars{}, clock, nil, log, 24*time.Hour),
		feed: &stubFeed{healthy: true, subscribed: make(map[string]bool)},
	}

	// No grace wait: the tests control cache contents directly.
	r := NewRouter(clock, fix.feed, fix.live, fix.rest, fix.bars, fix.eod, 0, log)
	return r, fix
}

func f64(v float64) *float64 { return &v }

func TestGetQuoteLiveWhenOpen(t *testing.T) {
	r, fix := newRouterFixture(t, true)
	fix.live.Apply("AAPL", quotecache.Update{Bid: f64(189.50), Ask: f64(189.52)})
	fix.feed.subscribed["AAPL"] = true

	q, err := r.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, contracts.ProvenanceLive, q.Source)
	assert.False(t, q.IsStale)
	assert.Equal(t, 189.50, q.Bid)
}

func TestGetQuoteSubscribesUnseenSymbol(t *testing.T) {
	r, fix := newRouterFixture(t, true)
	fix.rest.Apply("AAPL", quotecache.Update{Last: f64(189.40)})

	_, err := r.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, fix.feed.subscribed["AAPL"], "an open-market read must subscribe the symbol")
}

func TestGetQuoteFallsBackToRESTWhenOpen(t *testing.T) {
	r, fix := newRouterFixture(t, true)
	fix.feed.subscribed["AAPL"] = true // subscribed but no event arrived
	fix.rest.Apply("AAPL", quotecache.Update{Last: f64(189.40)})

	q, err := r.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, contracts.ProvenanceCachedREST, q.Source)
	assert.Equal(t, 189.40, q.Last)
}

func TestGetQuoteSkipsLiveWhenClosed(t *testing.T) {
	r, fix := newRouterFixture(t, false)
	// A live entry exists, but the market is closed: the live tier is skipped.
	fix.live.Apply("AAPL", quotecache.Update{Bid: f64(189.50), Ask: f64(189.52)})
	fix.rest.Apply("AAPL", quotecache.Update{Last: f64(189.40)})

	q, err := r.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, contracts.ProvenanceCachedREST, q.Source)
	assert.False(t, q.IsStale, "closed-market REST data is as fresh as it gets")
	assert.Empty(t, fix.feed.subscribed, "no subscriptions while closed")
}

func TestGetQuoteStaleLiveLastResort(t *testing.T) {
	r, fix := newRouterFixture(t, true)
	fix.feed.subscribed["AAPL"] = true
	fix.live.Apply("AAPL", quotecache.Update{
		Bid:       f64(189.50),
		Ask:       f64(189.52),
		Timestamp: time.Now().Add(-time.Hour),
	})

	q, err := r.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, contracts.ProvenanceFallback, q.Source)
	assert.True(t, q.IsStale, "the last resort is always tagged stale")
}

func TestGetQuoteNoDataAnywhere(t *testing.T) {
	r, _ := newRouterFixture(t, false)

	_, err := r.GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, contracts.ErrNoData)
}

func TestGetIndicatorBundleMissesWithoutHistory(t *testing.T) {
	r, _ := newRouterFixture(t, false)

	_, err := r.GetIndicatorBundle("AAPL", 14)
	assert.ErrorIs(t, err, contracts.ErrNoData)
}
