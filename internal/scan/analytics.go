package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/pricing"
)

// ContractAnalytics is one chain contract with freshly computed Greeks.
type ContractAnalytics struct {
	Contract contracts.OptionContract `json:"contract"`
	Greeks   contracts.Greeks         `json:"greeks"`
}

// OptionsAnalytics is the on-demand per-symbol chain summary served to the
// request layer: per-contract Greeks plus chain-level IV and volume metrics
// for one side of the chain.
type OptionsAnalytics struct {
	Symbol      string                `json:"symbol"`
	Right       contracts.OptionRight `json:"right"`
	Spot        float64               `json:"spot"`
	QuoteSource contracts.Provenance  `json:"quote_source"`
	QuoteStale  bool                  `json:"quote_stale"`
	Contracts   []ContractAnalytics   `json:"contracts"`
	AvgIV       float64               `json:"avg_iv"`
	TotalVolume int64                 `json:"total_volume"`
	TotalOI     int64                 `json:"total_oi"`
	ComputedAt  time.Time             `json:"computed_at"`
}

// AnalyticsFor resolves one underlying's chain outside a scan cycle and
// computes Greeks for every contract of the requested right. It routes the
// spot through the same tiered quote path the scan uses, so off-hours calls
// degrade to cached and historical sources with the provenance tagged.
func (o *Orchestrator) AnalyticsFor(ctx context.Context, symbol string, right contracts.OptionRight) (*OptionsAnalytics, error) {
	quote, err := o.router.GetQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("resolve quote for %s: %w", symbol, err)
	}

	chain, err := o.chains.FetchOptionChain(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch chain for %s: %w", symbol, err)
	}

	now := time.Now()
	spot := quote.Mid()
	out := &OptionsAnalytics{
		Symbol:      symbol,
		Right:       right,
		Spot:        spot,
		QuoteSource: quote.Source,
		QuoteStale:  quote.IsStale,
		ComputedAt:  now,
	}

	var ivSum, ivWeight float64
	for _, c := range chain {
		if c.Right != right {
			continue
		}

		t := pricing.YearsToExpiry(c.Expiry, now)
		greeks := o.pricer.Greeks(symbol, spot, c.Strike, t, c.ImpliedVolatility, c.Right)

		out.Contracts = append(out.Contracts, ContractAnalytics{Contract: c, Greeks: greeks})
		out.TotalVolume += c.Volume
		out.TotalOI += c.OpenInterest

		if c.ImpliedVolatility > 0 {
			w := float64(c.OpenInterest)
			if w < 1 {
				w = 1
			}
			ivSum += c.ImpliedVolatility * w
			ivWeight += w
		}
	}

	if len(out.Contracts) == 0 {
		return nil, fmt.Errorf("chain for %s: no %s contracts: %w", symbol, right, contracts.ErrNoData)
	}
	if ivWeight > 0 {
		out.AvgIV = ivSum / ivWeight
	}

	return out, nil
}
