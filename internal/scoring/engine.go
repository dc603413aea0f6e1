package scoring

import (
	"sort"
	"time"

	"github.com/danielhan-dev/strikescan/internal/contracts"
	"github.com/danielhan-dev/strikescan/internal/pricing"
	"github.com/danielhan-dev/strikescan/pkg/logger"
)

// Config bundles the full scoring policy.
type Config struct {
	Funnel FunnelConfig
	Layers LayerConfig

	// Rankability gates
	MinScore        float64
	MinActiveLayers int

	// Target/stop derivation
	TargetMultiple    float64
	StopMultiple      float64
	MaxUnderlyingMove float64

	// Composite ceiling
	MaxScore float64
}

// DefaultConfig returns the standard scoring policy.
func DefaultConfig() Config {
	return Config{
		Funnel:            DefaultFunnelConfig(),
		Layers:            DefaultLayerConfig(),
		MinScore:          50,
		MinActiveLayers:   2,
		TargetMultiple:    1.5,
		StopMultiple:      0.7,
		MaxUnderlyingMove: 0.10,
		MaxScore:          100,
	}
}

// Engine runs the filter funnel and layered scoring over option chains.
type Engine struct {
	config Config
	pricer *pricing.Engine
	logger *logger.Logger
}

// NewEngine creates a scoring engine over the shared pricing engine.
func NewEngine(config Config, pricer *pricing.Engine, log *logger.Logger) *Engine {
	return &Engine{
		config: config,
		pricer: pricer,
		logger: log.WithField("component", "scoring_engine"),
	}
}

// Input is the per-symbol context for one scoring pass.
type Input struct {
	Symbol      string
	Spot        float64
	QuoteSource contracts.Provenance
	QuoteStale  bool
	RSI         float64
	EMA         float64
	Chain       []contracts.OptionContract
	Now         time.Time
}

// Tally records candidate attrition for one symbol's pass.
type Tally struct {
	ChainSize      int
	PassedFunnel   int
	Scored         int
	AboveThreshold int
	ByStage        map[string]int
}

// DirectionFor decides which contract side a symbol qualifies for. An
// oversold RSI in an uptrend sets up calls; an overbought RSI in a
// downtrend sets up puts. Neutral symbols get no direction.
func (e *Engine) DirectionFor(rsi, price, ema float64) (contracts.OptionRight, bool) {
	if rsi <= e.config.Layers.RSIOversold && price > ema {
		return contracts.Call, true
	}
	if rsi >= e.config.Layers.RSIOverbought && price < ema {
		return contracts.Put, true
	}
	return "", false
}

// Score runs one symbol's chain through the funnel and layers. Only
// contracts matching the symbol's qualified direction are considered.
func (e *Engine) Score(in Input) ([]contracts.ScoredCandidate, Tally) {
	tally := Tally{ChainSize: len(in.Chain), ByStage: make(map[string]int)}

	right, ok := e.DirectionFor(in.RSI, in.Spot, in.EMA)
	if !ok {
		tally.ByStage["direction"] = len(in.Chain)
		return nil, tally
	}

	e.pricer.PrecomputeSurface(in.Symbol, in.Spot, in.Chain, in.Now)

	maxPain, havePain := ComputeMaxPain(in.Chain)
	callIV, putIV := chainIVAverages(in.Chain)
	lin := layerInput{
		spot:     in.Spot,
		maxPain:  maxPain,
		havePain: havePain,
		callIV:   callIV,
		putIV:    putIV,
		rsi:      in.RSI,
		now:      in.Now,
	}

	candidates := make([]contracts.ScoredCandidate, 0)
	for i := range in.Chain {
		c := in.Chain[i]
		if c.Right != right {
			continue
		}

		t := pricing.YearsToExpiry(c.Expiry, in.Now)
		greeks := e.pricer.Greeks(in.Symbol, in.Spot, c.Strike, t, c.ImpliedVolatility, c.Right)
		c.Greeks = greeks

		if stage := e.config.Funnel.checkFunnel(&c, greeks.Delta, in.Now); stage != "" {
			tally.ByStage[string(stage)]++
			continue
		}
		tally.PassedFunnel++

		layers := e.config.Layers.scoreLayers(&c, lin)
		composite := layers.Sum()
		if composite > e.config.MaxScore {
			composite = e.config.MaxScore
		}
		tally.Scored++

		if composite < e.config.MinScore || layers.ActiveCount() < e.config.MinActiveLayers {
			tally.ByStage["below_threshold"]++
			continue
		}

		cand, ok := e.deriveLevels(contracts.ScoredCandidate{
			Contract:    c,
			Layers:      layers,
			Composite:   composite,
			SpotAtScan:  in.Spot,
			QuoteStale:  in.QuoteStale,
			QuoteSource: in.QuoteSource,
		}, t)
		if !ok {
			tally.ByStage["max_move"]++
			continue
		}

		tally.AboveThreshold++
		candidates = append(candidates, cand)
	}

	return candidates, tally
}

// deriveLevels computes target and stop premiums, then inverts the pricing
// formula to find the spot each implies. A candidate whose target needs a
// larger underlying move than allowed is rejected.
func (e *Engine) deriveLevels(cand contracts.ScoredCandidate, tYears float64) (contracts.ScoredCandidate, bool) {
	c := &cand.Contract
	mid := c.MidPremium()

	cand.TargetPremium = mid * e.config.TargetMultiple
	cand.StopPremium = mid * e.config.StopMultiple

	targetSpot, err := e.pricer.SolveSpotForPremium(cand.SpotAtScan, c.Strike, tYears, c.ImpliedVolatility, c.Right, cand.TargetPremium)
	if err != nil {
		e.logger.WithError(err).WithField("contract", c.Symbol).Debug("target spot solve failed")
		return cand, false
	}
	cand.TargetSpot = targetSpot

	move := (targetSpot - cand.SpotAtScan) / cand.SpotAtScan
	if move < 0 {
		move = -move
	}
	if move > e.config.MaxUnderlyingMove {
		return cand, false
	}

	stopSpot, err := e.pricer.SolveSpotForPremium(cand.SpotAtScan, c.Strike, tYears, c.ImpliedVolatility, c.Right, cand.StopPremium)
	if err == nil {
		cand.StopSpot = stopSpot
	}

	return cand, true
}

// Rank orders candidates by descending composite score. Ties break toward
// higher contract volume, then lexicographic contract symbol, so a given
// input always ranks the same way.
func Rank(candidates []contracts.ScoredCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		if a.Contract.Volume != b.Contract.Volume {
			return a.Contract.Volume > b.Contract.Volume
		}
		return a.Contract.Symbol < b.Contract.Symbol
	})
}
