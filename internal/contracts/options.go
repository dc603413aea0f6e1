package contracts

import "time"

// OptionRight distinguishes calls from puts.
type OptionRight string

const (
	Call OptionRight = "call"
	Put  OptionRight = "put"
)

// Greeks are the analytic price sensitivities of an option.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// OptionContract is one listed contract from an option-chain snapshot.
// It is rebuilt for every scan and never persisted by this core.
type OptionContract struct {
	Symbol            string      `json:"symbol"`
	Underlying        string      `json:"underlying"`
	Strike            float64     `json:"strike"`
	Expiry            time.Time   `json:"expiry"`
	Right             OptionRight `json:"right"`
	Bid               float64     `json:"bid"`
	Ask               float64     `json:"ask"`
	Volume            int64       `json:"volume"`
	OpenInterest      int64       `json:"open_interest"`
	ImpliedVolatility float64     `json:"implied_volatility"`
	Greeks            Greeks      `json:"greeks"`
}

// MidPremium returns the bid/ask midpoint premium.
func (c *OptionContract) MidPremium() float64 {
	return (c.Bid + c.Ask) / 2
}

// SpreadPercent returns the bid/ask spread as a fraction of the mid,
// or 1.0 when the book is unusable.
func (c *OptionContract) SpreadPercent() float64 {
	mid := c.MidPremium()
	if mid <= 0 || c.Ask <= 0 {
		return 1.0
	}
	return (c.Ask - c.Bid) / mid
}

// DaysToExpiry returns the whole days between now and expiry.
func (c *OptionContract) DaysToExpiry(now time.Time) int {
	return int(c.Expiry.Sub(now).Hours() / 24)
}

// LayerScores records the contribution of each scoring layer.
type LayerScores struct {
	MaxPain   float64 `json:"max_pain"`
	IVSkew    float64 `json:"iv_skew"`
	VolumeOI  float64 `json:"volume_oi"`
	ExpiryRSI float64 `json:"expiry_rsi"`
}

// ActiveCount returns the number of non-zero layers.
func (l LayerScores) ActiveCount() int {
	n := 0
	for _, v := range []float64{l.MaxPain, l.IVSkew, l.VolumeOI, l.ExpiryRSI} {
		if v != 0 {
			n++
		}
	}
	return n
}

// Sum returns the raw layer total before capping.
func (l LayerScores) Sum() float64 {
	return l.MaxPain + l.IVSkew + l.VolumeOI + l.ExpiryRSI
}

// ScoredCandidate is a contract that survived the funnel and was scored.
type ScoredCandidate struct {
	Contract       OptionContract `json:"contract"`
	Layers         LayerScores    `json:"layers"`
	Composite      float64        `json:"composite"`
	TargetPremium  float64        `json:"target_premium"`
	StopPremium    float64        `json:"stop_premium"`
	TargetSpot     float64        `json:"target_spot"`
	StopSpot       float64        `json:"stop_spot"`
	SpotAtScan     float64        `json:"spot_at_scan"`
	QuoteStale     bool           `json:"quote_stale"`
	QuoteSource    Provenance     `json:"quote_source"`
}

// FunnelCounts tracks candidate attrition per scan for observability.
type FunnelCounts struct {
	UniverseSize   int `json:"universe_size"`
	BasicFiltered  int `json:"basic_filtered"`
	Scored         int `json:"scored"`
	AboveThreshold int `json:"above_threshold"`
}

// ScanResult is the immutable output of one scan invocation.
type ScanResult struct {
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration"`
	Funnel     FunnelCounts      `json:"funnel"`
	Candidates []ScoredCandidate `json:"candidates"`
	Skipped    []string          `json:"skipped,omitempty"`
}
