package scanconfig

import (
	"fmt"

	"github.com/danielhan-dev/strikescan/internal/scan"
	"github.com/danielhan-dev/strikescan/internal/scoring"
	"github.com/danielhan-dev/strikescan/internal/universe"
)

// Config is the YAML scan-strategy document. Every tunable of the funnel,
// the scoring layers, and the universe filter lives here, so a strategy
// change is a config change, not a code change.
type Config struct {
	Meta     Meta     `yaml:"meta" json:"meta"`
	Universe Universe `yaml:"universe" json:"universe"`
	Funnel   Funnel   `yaml:"funnel" json:"funnel"`
	Layers   Layers   `yaml:"layers" json:"layers"`
	Ranking  Ranking  `yaml:"ranking" json:"ranking"`
	Levels   Levels   `yaml:"levels" json:"levels"`
}

type Meta struct {
	StrategyID  string `yaml:"strategy_id" json:"strategy_id"`
	Description string `yaml:"description" json:"description"`
	Version     string `yaml:"version" json:"version"`
}

type Universe struct {
	MinPrice     float64  `yaml:"min_price" json:"min_price"`
	MaxPrice     float64  `yaml:"max_price" json:"max_price"`
	MinVolume    int64    `yaml:"min_volume" json:"min_volume"`
	MinMarketCap float64  `yaml:"min_market_cap" json:"min_market_cap"`
	AllowList    []string `yaml:"allow_list" json:"allow_list"`
}

type Funnel struct {
	MinVolume        int64   `yaml:"min_volume" json:"min_volume"`
	MinOpenInterest  int64   `yaml:"min_open_interest" json:"min_open_interest"`
	MaxSpreadPercent float64 `yaml:"max_spread_percent" json:"max_spread_percent"`
	MinPremium       float64 `yaml:"min_premium" json:"min_premium"`
	MaxPremium       float64 `yaml:"max_premium" json:"max_premium"`
	MinDelta         float64 `yaml:"min_delta" json:"min_delta"`
	MaxDelta         float64 `yaml:"max_delta" json:"max_delta"`
	MinIV            float64 `yaml:"min_iv" json:"min_iv"`
	MaxIV            float64 `yaml:"max_iv" json:"max_iv"`
}

type Layers struct {
	MaxPainPoints           float64 `yaml:"max_pain_points" json:"max_pain_points"`
	MaxPainProximityPercent float64 `yaml:"max_pain_proximity_percent" json:"max_pain_proximity_percent"`
	IVSkewPoints            float64 `yaml:"iv_skew_points" json:"iv_skew_points"`
	SkewRatio               float64 `yaml:"skew_ratio" json:"skew_ratio"`
	VolumeOIPoints          float64 `yaml:"volume_oi_points" json:"volume_oi_points"`
	SurgeRatio              float64 `yaml:"surge_ratio" json:"surge_ratio"`
	ExpiryRSIPoints         float64 `yaml:"expiry_rsi_points" json:"expiry_rsi_points"`
	NearExpiryDays          int     `yaml:"near_expiry_days" json:"near_expiry_days"`
	RSIOversold             float64 `yaml:"rsi_oversold" json:"rsi_oversold"`
	RSIOverbought           float64 `yaml:"rsi_overbought" json:"rsi_overbought"`
}

type Ranking struct {
	MinScore        float64 `yaml:"min_score" json:"min_score"`
	MinActiveLayers int     `yaml:"min_active_layers" json:"min_active_layers"`
	TopK            int     `yaml:"top_k" json:"top_k"`
	IndicatorPeriod int     `yaml:"indicator_period" json:"indicator_period"`
}

type Levels struct {
	TargetMultiple    float64 `yaml:"target_multiple" json:"target_multiple"`
	StopMultiple      float64 `yaml:"stop_multiple" json:"stop_multiple"`
	MaxUnderlyingMove float64 `yaml:"max_underlying_move" json:"max_underlying_move"`
}

// Validate rejects configs that would score nothing or rank nonsense.
func Validate(cfg *Config) error {
	if cfg.Meta.StrategyID == "" {
		return fmt.Errorf("meta.strategy_id is required")
	}
	if cfg.Universe.MinPrice < 0 || (cfg.Universe.MaxPrice > 0 && cfg.Universe.MaxPrice < cfg.Universe.MinPrice) {
		return fmt.Errorf("universe price bounds invalid: min=%.2f max=%.2f", cfg.Universe.MinPrice, cfg.Universe.MaxPrice)
	}
	if cfg.Funnel.MinDelta < 0 || cfg.Funnel.MaxDelta > 1 || cfg.Funnel.MinDelta >= cfg.Funnel.MaxDelta {
		return fmt.Errorf("funnel delta band invalid: min=%.2f max=%.2f", cfg.Funnel.MinDelta, cfg.Funnel.MaxDelta)
	}
	if cfg.Funnel.MinPremium >= cfg.Funnel.MaxPremium {
		return fmt.Errorf("funnel premium band invalid: min=%.2f max=%.2f", cfg.Funnel.MinPremium, cfg.Funnel.MaxPremium)
	}
	if cfg.Funnel.MinIV >= cfg.Funnel.MaxIV {
		return fmt.Errorf("funnel iv band invalid: min=%.2f max=%.2f", cfg.Funnel.MinIV, cfg.Funnel.MaxIV)
	}

	total := cfg.Layers.MaxPainPoints + cfg.Layers.IVSkewPoints + cfg.Layers.VolumeOIPoints + cfg.Layers.ExpiryRSIPoints
	if total <= 0 {
		return fmt.Errorf("layer points must be positive, total=%.1f", total)
	}
	if cfg.Ranking.MinScore > total {
		return fmt.Errorf("ranking.min_score %.1f exceeds maximum attainable score %.1f", cfg.Ranking.MinScore, total)
	}
	if cfg.Ranking.MinActiveLayers < 0 || cfg.Ranking.MinActiveLayers > 4 {
		return fmt.Errorf("ranking.min_active_layers must be 0..4, got %d", cfg.Ranking.MinActiveLayers)
	}
	if cfg.Ranking.TopK <= 0 {
		return fmt.Errorf("ranking.top_k must be positive, got %d", cfg.Ranking.TopK)
	}
	if cfg.Ranking.IndicatorPeriod <= 0 {
		return fmt.Errorf("ranking.indicator_period must be positive, got %d", cfg.Ranking.IndicatorPeriod)
	}

	if cfg.Levels.TargetMultiple <= 1 {
		return fmt.Errorf("levels.target_multiple must exceed 1, got %.2f", cfg.Levels.TargetMultiple)
	}
	if cfg.Levels.StopMultiple <= 0 || cfg.Levels.StopMultiple >= 1 {
		return fmt.Errorf("levels.stop_multiple must be in (0, 1), got %.2f", cfg.Levels.StopMultiple)
	}
	if cfg.Levels.MaxUnderlyingMove <= 0 {
		return fmt.Errorf("levels.max_underlying_move must be positive, got %.4f", cfg.Levels.MaxUnderlyingMove)
	}

	return nil
}

// ScoringConfig converts the document into the scoring engine's policy.
func (c *Config) ScoringConfig() scoring.Config {
	return scoring.Config{
		Funnel: scoring.FunnelConfig{
			MinVolume:        c.Funnel.MinVolume,
			MinOpenInterest:  c.Funnel.MinOpenInterest,
			MaxSpreadPercent: c.Funnel.MaxSpreadPercent,
			MinPremium:       c.Funnel.MinPremium,
			MaxPremium:       c.Funnel.MaxPremium,
			MinDelta:         c.Funnel.MinDelta,
			MaxDelta:         c.Funnel.MaxDelta,
			MinIV:            c.Funnel.MinIV,
			MaxIV:            c.Funnel.MaxIV,
		},
		Layers: scoring.LayerConfig{
			MaxPainPoints:           c.Layers.MaxPainPoints,
			MaxPainProximityPercent: c.Layers.MaxPainProximityPercent,
			IVSkewPoints:            c.Layers.IVSkewPoints,
			SkewRatio:               c.Layers.SkewRatio,
			VolumeOIPoints:          c.Layers.VolumeOIPoints,
			SurgeRatio:              c.Layers.SurgeRatio,
			ExpiryRSIPoints:         c.Layers.ExpiryRSIPoints,
			NearExpiryDays:          c.Layers.NearExpiryDays,
			RSIOversold:             c.Layers.RSIOversold,
			RSIOverbought:           c.Layers.RSIOverbought,
		},
		MinScore:          c.Ranking.MinScore,
		MinActiveLayers:   c.Ranking.MinActiveLayers,
		TargetMultiple:    c.Levels.TargetMultiple,
		StopMultiple:      c.Levels.StopMultiple,
		MaxUnderlyingMove: c.Levels.MaxUnderlyingMove,
		MaxScore:          100,
	}
}

// ScanConfig converts the document into the orchestrator's settings.
func (c *Config) ScanConfig(fetchPoolSize int) scan.Config {
	return scan.Config{
		TopK:            c.Ranking.TopK,
		IndicatorPeriod: c.Ranking.IndicatorPeriod,
		FetchPoolSize:   fetchPoolSize,
		Universe: universe.Criteria{
			MinPrice:     c.Universe.MinPrice,
			MaxPrice:     c.Universe.MaxPrice,
			MinVolume:    c.Universe.MinVolume,
			MinMarketCap: c.Universe.MinMarketCap,
			AllowList:    c.Universe.AllowList,
		},
	}
}

// Default returns the built-in strategy used when no YAML file is given.
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID:  "strikescan-default",
			Description: "Built-in four-layer options scan",
			Version:     "1",
		},
		Universe: Universe{
			MinPrice:  5,
			MaxPrice:  1000,
			MinVolume: 500_000,
		},
		Funnel: Funnel{
			MinVolume:        100,
			MinOpenInterest:  500,
			MaxSpreadPercent: 0.15,
			MinPremium:       0.10,
			MaxPremium:       20.0,
			MinDelta:         0.20,
			MaxDelta:         0.80,
			MinIV:            0.10,
			MaxIV:            2.50,
		},
		Layers: Layers{
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
		},
		Ranking: Ranking{
			MinScore:        50,
			MinActiveLayers: 2,
			TopK:            10,
			IndicatorPeriod: 14,
		},
		Levels: Levels{
			TargetMultiple:    1.5,
			StopMultiple:      0.7,
			MaxUnderlyingMove: 0.10,
		},
	}
}
