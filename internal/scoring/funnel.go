package scoring

import (
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
)

// FunnelConfig defines the ordered hard-cut gates applied before scoring.
// A contract failing any gate is discarded immediately and never scored.
type FunnelConfig struct {
	// Liquidity gate
	MinVolume       int64
	MinOpenInterest int64

	// Spread gate
	MaxSpreadPercent float64

	// Premium band
	MinPremium float64
	MaxPremium float64

	// Greeks band (absolute delta)
	MinDelta float64
	MaxDelta float64

	// Implied volatility band
	MinIV float64
	MaxIV float64
}

// DefaultFunnelConfig returns the standard gate settings.
func DefaultFunnelConfig() FunnelConfig {
	return FunnelConfig{
		MinVolume:        100,
		MinOpenInterest:  500,
		MaxSpreadPercent: 0.15,
		MinPremium:       0.10,
		MaxPremium:       20.0,
		MinDelta:         0.20,
		MaxDelta:         0.80,
		MinIV:            0.10,
		MaxIV:            2.50,
	}
}

// funnelStage names the gate that rejected a contract, for attrition logs.
type funnelStage string

const (
	stageLiquidity funnelStage = "liquidity"
	stageSpread    funnelStage = "spread"
	stagePremium   funnelStage = "premium_band"
	stageGreeks    funnelStage = "greeks_band"
	stageIV        funnelStage = "iv_band"
)

// checkFunnel runs a contract through the gates in order and returns the
// first failing stage, or "" when the contract survives. delta is the
// precomputed analytic delta for the contract.
func (cfg FunnelConfig) checkFunnel(c *contracts.OptionContract, delta float64, now time.Time) funnelStage {
	if c.Volume < cfg.MinVolume || c.OpenInterest < cfg.MinOpenInterest {
		return stageLiquidity
	}

	if c.SpreadPercent() > cfg.MaxSpreadPercent {
		return stageSpread
	}

	mid := c.MidPremium()
	if mid < cfg.MinPremium || mid > cfg.MaxPremium {
		return stagePremium
	}

	absDelta := delta
	if absDelta < 0 {
		absDelta = -absDelta
	}
	if absDelta < cfg.MinDelta || absDelta > cfg.MaxDelta {
		return stageGreeks
	}

	if c.ImpliedVolatility < cfg.MinIV || c.ImpliedVolatility > cfg.MaxIV {
		return stageIV
	}

	return ""
}
