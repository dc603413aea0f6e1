package quotecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhan-dev/strikescan/pkg/logger"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func TestGetMissesWhenAbsent(t *testing.T) {
	c := New(10*time.Second, logger.NewNop())

	q, ok := c.Get("AAPL")
	assert.False(t, ok)
	assert.Nil(t, q, "a miss must never look like a zero price")
}

func TestGetMissesWhenStale(t *testing.T) {
	c := New(10*time.Second, logger.NewNop())

	c.Apply("AAPL", Update{
		Bid:       f64(100.00),
		Ask:       f64(100.10),
		Timestamp: time.Now().Add(-time.Minute),
	})

	_, ok := c.Get("AAPL")
	assert.False(t, ok, "a quote past the freshness threshold is not live")

	q, ok := c.Peek("AAPL")
	require.True(t, ok)
	assert.True(t, q.IsStale)
	assert.Equal(t, 100.00, q.Bid)
}

func TestApplyMergesFieldWise(t *testing.T) {
	c := New(10*time.Second, logger.NewNop())

	c.Apply("AAPL", Update{Bid: f64(100.00), Ask: f64(100.10)})
	c.Apply("AAPL", Update{Last: f64(100.07), Volume: i64(5000)})

	q, ok := c.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, 100.00, q.Bid, "a trade update must not clobber the book")
	assert.Equal(t, 100.10, q.Ask)
	assert.Equal(t, 100.07, q.Last)
	assert.Equal(t, int64(5000), q.Volume)
}

func TestMidpointExact(t *testing.T) {
	c := New(10*time.Second, logger.NewNop())
	c.Apply("AAPL", Update{Bid: f64(100.00), Ask: f64(100.10)})

	q, ok := c.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, 100.05, q.Mid())
}

func TestTimestampOnlyAdvances(t *testing.T) {
	c := New(10*time.Second, logger.NewNop())
	now := time.Now()

	c.Apply("AAPL", Update{Last: f64(100.00), Timestamp: now})
	c.Apply("AAPL", Update{Bid: f64(99.90), Timestamp: now.Add(-time.Hour)})

	q, ok := c.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, now.Unix(), q.Timestamp.Unix(), "an old timestamp must not rewind the entry")
	assert.Equal(t, 99.90, q.Bid, "the field itself still merges")
}

func TestGetReturnsCopy(t *testing.T) {
	c := New(10*time.Second, logger.NewNop())
	c.Apply("AAPL", Update{Bid: f64(100.00), Ask: f64(100.10)})

	q1, _ := c.Get("AAPL")
	q1.Bid = 1.0

	q2, _ := c.Get("AAPL")
	assert.Equal(t, 100.00, q2.Bid, "callers must not be able to mutate cache internals")
}

func TestCleanStale(t *testing.T) {
	c := New(10*time.Second, logger.NewNop())

	c.Apply("OLD", Update{Last: f64(1), Timestamp: time.Now().Add(-time.Minute)})
	c.Apply("NEW", Update{Last: f64(2)})

	removed := c.CleanStale()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Peek("OLD")
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	c := New(10*time.Second, logger.NewNop())

	c.Apply("OLD", Update{Last: f64(1), Timestamp: time.Now().Add(-time.Minute)})
	c.Apply("NEW", Update{Last: f64(2)})

	stats := c.Stats()
	assert.Equal(t, 2, stats.TotalCount)
	assert.Equal(t, 1, stats.FreshCount)
	assert.Equal(t, 1, stats.StaleCount)
}
