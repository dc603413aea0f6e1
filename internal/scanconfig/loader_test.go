package scanconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
meta:
  strategy_id: test-strategy
  description: test
  version: "1"
universe:
  min_price: 5
  max_price: 500
  min_volume: 100000
funnel:
  min_volume: 100
  min_open_interest: 500
  max_spread_percent: 0.15
  min_premium: 0.10
  max_premium: 20.0
  min_delta: 0.20
  max_delta: 0.80
  min_iv: 0.10
  max_iv: 2.50
layers:
  max_pain_points: 30
  max_pain_proximity_percent: 0.02
  iv_skew_points: 25
  skew_ratio: 1.05
  volume_oi_points: 25
  surge_ratio: 1.5
  expiry_rsi_points: 20
  near_expiry_days: 10
  rsi_oversold: 30
  rsi_overbought: 70
ranking:
  min_score: 50
  min_active_layers: 2
  top_k: 10
  indicator_period: 14
levels:
  target_multiple: 1.5
  stop_multiple: 0.7
  max_underlying_move: 0.10
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, raw, err := Load(writeTemp(t, validYAML))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.NotEmpty(t, raw)

	assert.Equal(t, "test-strategy", cfg.Meta.StrategyID)
	assert.Equal(t, 0.15, cfg.Funnel.MaxSpreadPercent)
	assert.Equal(t, 10, cfg.Ranking.TopK)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	bad := validYAML + "\nnot_a_real_section:\n  oops: 1\n"
	_, _, err := Load(writeTemp(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_a_real_section")
}

func TestLoadRejectsInvalidBands(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing strategy id", func(c *Config) { c.Meta.StrategyID = "" }, "strategy_id"},
		{"inverted delta band", func(c *Config) { c.Funnel.MinDelta = 0.9 }, "delta band"},
		{"min score unattainable", func(c *Config) { c.Ranking.MinScore = 500 }, "min_score"},
		{"stop multiple above one", func(c *Config) { c.Levels.StopMultiple = 1.2 }, "stop_multiple"},
		{"target multiple below one", func(c *Config) { c.Levels.TargetMultiple = 0.9 }, "target_multiple"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestHashDeterministic(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)
	b, err := Hash(Default())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	changed := Default()
	changed.Ranking.TopK = 25
	c, err := Hash(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestConversionCarriesEveryKnob(t *testing.T) {
	cfg := Default()
	sc := cfg.ScoringConfig()

	assert.Equal(t, cfg.Funnel.MaxSpreadPercent, sc.Funnel.MaxSpreadPercent)
	assert.Equal(t, cfg.Layers.SurgeRatio, sc.Layers.SurgeRatio)
	assert.Equal(t, cfg.Ranking.MinActiveLayers, sc.MinActiveLayers)
	assert.Equal(t, cfg.Levels.MaxUnderlyingMove, sc.MaxUnderlyingMove)
	assert.Equal(t, 100.0, sc.MaxScore)

	scan := cfg.ScanConfig(4)
	assert.Equal(t, cfg.Ranking.TopK, scan.TopK)
	assert.Equal(t, 4, scan.FetchPoolSize)
	assert.Equal(t, cfg.Universe.MinVolume, scan.Universe.MinVolume)
}
