package contracts

import "time"

// Provenance identifies which tier of the data stack produced a value.
type Provenance string

const (
	ProvenanceLive       Provenance = "live"
	ProvenanceCachedREST Provenance = "cached_rest"
	ProvenanceHistorical Provenance = "historical"
	ProvenanceFallback   Provenance = "fallback"
)

// Priority returns the routing priority for a provenance (higher = better).
func (p Provenance) Priority() int {
	switch p {
	case ProvenanceLive:
		return 4
	case ProvenanceCachedREST:
		return 3
	case ProvenanceHistorical:
		return 2
	case ProvenanceFallback:
		return 1
	default:
		return 0
	}
}

// Quote represents the last-known market state for a symbol.
// Bid/ask and last-trade are fed independently: a trade event must not
// clobber the book and vice versa.
type Quote struct {
	Symbol    string     `json:"symbol"`
	Bid       float64    `json:"bid"`
	Ask       float64    `json:"ask"`
	Last      float64    `json:"last"`
	Volume    int64      `json:"volume"`
	Timestamp time.Time  `json:"timestamp"`
	Source    Provenance `json:"source"`
	IsStale   bool       `json:"is_stale"`
}

// Mid returns the bid/ask midpoint, or the last trade if the book is empty.
func (q *Quote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}

// HasBook reports whether both sides of the book are populated.
func (q *Quote) HasBook() bool {
	return q.Bid > 0 && q.Ask > 0
}

// HistoricalBar is one OHLCV bar.
type HistoricalBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// SymbolSeries holds a symbol's bar history, strictly ascending by
// timestamp and deduplicated by trading day.
type SymbolSeries struct {
	Symbol          string          `json:"symbol"`
	Bars            []HistoricalBar `json:"bars"`
	RangeStart      time.Time       `json:"range_start"`
	RangeEnd        time.Time       `json:"range_end"`
	LastRefreshedAt time.Time       `json:"last_refreshed_at"`
}

// LatestClose returns the most recent close, or false when the series is empty.
func (s *SymbolSeries) LatestClose() (float64, bool) {
	if len(s.Bars) == 0 {
		return 0, false
	}
	return s.Bars[len(s.Bars)-1].Close, true
}

// Closes returns the close column, oldest first.
func (s *SymbolSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// UniverseEntry is one row of the bulk market snapshot.
type UniverseEntry struct {
	Ticker        string    `json:"ticker"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	MarketCap     float64   `json:"market_cap,omitempty"`
	AvgVolume     int64     `json:"avg_volume,omitempty"`
	High          float64   `json:"high,omitempty"`
	Low           float64   `json:"low,omitempty"`
	Open          float64   `json:"open,omitempty"`
	Close         float64   `json:"close,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// UniverseSnapshot is the full tradable symbol set, replaced atomically on
// refresh and never partially updated.
type UniverseSnapshot struct {
	Entries   []UniverseEntry `json:"entries"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// IndicatorBundle packages the technical indicators the serving layer asks for.
type IndicatorBundle struct {
	Symbol string          `json:"symbol"`
	Period int             `json:"period"`
	RSI    float64         `json:"rsi"`
	EMA    float64         `json:"ema"`
	ATR    float64         `json:"atr"`
	Bars   []HistoricalBar `json:"bars"`
}
