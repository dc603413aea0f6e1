package pricing

import (
	"fmt"
	"math"

	"github.com/danielhan-dev/strikescan/internal/contracts"
)

const (
	solverMaxIter   = 100
	solverTolerance = 1e-4
)

// SolveSpotForPremium inverts the pricing formula by bisection: it finds
// the underlying price at which the contract's theoretical premium equals
// targetPremium. The bracket spans 1% to 300% of the current spot, which
// covers any move a scan would accept.
func (e *Engine) SolveSpotForPremium(spot, strike, tYears, vol float64, right contracts.OptionRight, targetPremium float64) (float64, error) {
	if spot <= 0 || targetPremium < 0 {
		return 0, fmt.Errorf("solve spot: invalid inputs spot=%.4f target=%.4f", spot, targetPremium)
	}

	lo := spot * 0.01
	hi := spot * 3.0

	fLo := e.Premium(lo, strike, tYears, vol, right) - targetPremium
	fHi := e.Premium(hi, strike, tYears, vol, right) - targetPremium
	if fLo*fHi > 0 {
		return 0, fmt.Errorf("solve spot: premium %.4f unreachable within bracket", targetPremium)
	}

	// Premium is monotonic in spot for a fixed contract, so plain bisection
	// converges without a derivative.
	for i := 0; i < solverMaxIter; i++ {
		mid := (lo + hi) / 2
		fMid := e.Premium(mid, strike, tYears, vol, right) - targetPremium

		if math.Abs(fMid) < solverTolerance || (hi-lo)/2 < solverTolerance {
			return mid, nil
		}

		if fLo*fMid < 0 {
			hi = mid
		} else {
			lo = mid
			fLo = fMid
		}
	}

	return (lo + hi) / 2, nil
}
