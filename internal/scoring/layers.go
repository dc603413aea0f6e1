package scoring

import (
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
)

// LayerConfig holds the point award and trigger threshold for each scoring
// layer. Layers are independent; each awards a fixed point value when its
// condition holds, and the composite is their capped sum.
type LayerConfig struct {
	// Max-pain proximity: spot within ProximityPercent of the max-pain strike.
	MaxPainPoints           float64
	MaxPainProximityPercent float64

	// IV skew inversion: the candidate's side carries richer vol than the
	// opposite side by at least SkewRatio.
	IVSkewPoints float64
	SkewRatio    float64

	// Volume/OI surge: today's contract volume over open interest.
	VolumeOIPoints float64
	SurgeRatio     float64

	// Near expiry combined with an RSI extreme.
	ExpiryRSIPoints float64
	NearExpiryDays  int
	RSIOversold     float64
	RSIOverbought   float64
}

// DefaultLayerConfig returns the standard layer settings. Points sum to 100
// so an all-layers hit saturates the composite exactly.
func DefaultLayerConfig() LayerConfig {
	return LayerConfig{
		MaxPainPoints:           30,
		MaxPainProximityPercent: 0.02,
		IVSkewPoints:            25,
		SkewRatio:               1.05,
		VolumeOIPoints:          25,
		SurgeRatio:              1.5,
		ExpiryRSIPoints:         20,
		NearExpiryDays:          10,
		RSIOversold:             30,
		RSIOverbought:           70,
	}
}

// layerInput carries the per-symbol context shared by every contract in a
// chain during one scan pass.
type layerInput struct {
	spot     float64
	maxPain  float64
	havePain bool
	callIV   float64
	putIV    float64
	rsi      float64
	now      time.Time
}

// scoreLayers evaluates every layer for one contract.
func (cfg LayerConfig) scoreLayers(c *contracts.OptionContract, in layerInput) contracts.LayerScores {
	var ls contracts.LayerScores

	if in.havePain && in.spot > 0 {
		dist := (in.spot - in.maxPain) / in.spot
		if dist < 0 {
			dist = -dist
		}
		if dist <= cfg.MaxPainProximityPercent {
			ls.MaxPain = cfg.MaxPainPoints
		}
	}

	if cfg.skewInverted(c.Right, in.callIV, in.putIV) {
		ls.IVSkew = cfg.IVSkewPoints
	}

	if c.OpenInterest > 0 {
		ratio := float64(c.Volume) / float64(c.OpenInterest)
		if ratio >= cfg.SurgeRatio {
			ls.VolumeOI = cfg.VolumeOIPoints
		}
	}

	if c.DaysToExpiry(in.now) <= cfg.NearExpiryDays && cfg.rsiExtreme(in.rsi) {
		ls.ExpiryRSI = cfg.ExpiryRSIPoints
	}

	return ls
}

// skewInverted reports whether the candidate's side of the chain carries
// richer implied volatility than the opposite side. Equity chains normally
// price puts over calls, so a call side trading rich is the inversion
// signal; for puts the bar is the usual skew exceeding the ratio.
func (cfg LayerConfig) skewInverted(right contracts.OptionRight, callIV, putIV float64) bool {
	if callIV <= 0 || putIV <= 0 {
		return false
	}
	switch right {
	case contracts.Call:
		return callIV >= putIV*cfg.SkewRatio
	case contracts.Put:
		return putIV >= callIV*cfg.SkewRatio
	}
	return false
}

func (cfg LayerConfig) rsiExtreme(rsi float64) bool {
	return rsi <= cfg.RSIOversold || rsi >= cfg.RSIOverbought
}
