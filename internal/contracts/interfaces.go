package contracts

import (
	"context"
	"time"
)

// MarketClock answers trading-hours questions in the exchange's own time
// zone. Implementations must use a real zone database, not a fixed UTC
// offset, since the offset changes twice a year.
type MarketClock interface {
	IsOpen(t time.Time) bool
	IsTradingDay(t time.Time) bool
	Location() *time.Location
}

// ResultSink receives completed scan results for durable storage. This core
// persists nothing itself; the analytics layer lives behind this interface.
type ResultSink interface {
	Store(ctx context.Context, result *ScanResult) error
}

// QuoteReader is the read-only surface a live quote cache exposes.
type QuoteReader interface {
	Get(symbol string) (*Quote, bool)
}
