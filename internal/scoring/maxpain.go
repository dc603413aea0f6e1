package scoring

import "github.com/danielhan-dev/strikescan/internal/contracts"

// ComputeMaxPain returns the strike at which aggregate option-writer payout
// across the chain is minimized. Returns false when the chain has no open
// interest to weigh.
func ComputeMaxPain(chain []contracts.OptionContract) (float64, bool) {
	strikes := make(map[float64]struct{})
	haveOI := false
	for _, c := range chain {
		strikes[c.Strike] = struct{}{}
		if c.OpenInterest > 0 {
			haveOI = true
		}
	}
	if len(strikes) == 0 || !haveOI {
		return 0, false
	}

	best := 0.0
	bestPayout := -1.0
	for settle := range strikes {
		payout := 0.0
		for _, c := range chain {
			oi := float64(c.OpenInterest)
			switch c.Right {
			case contracts.Call:
				if settle > c.Strike {
					payout += oi * (settle - c.Strike)
				}
			case contracts.Put:
				if settle < c.Strike {
					payout += oi * (c.Strike - settle)
				}
			}
		}
		// Lower strike wins ties so the result is deterministic.
		if bestPayout < 0 || payout < bestPayout || (payout == bestPayout && settle < best) {
			best = settle
			bestPayout = payout
		}
	}

	return best, true
}

// chainIVAverages returns the open-interest-weighted mean implied
// volatility for the call side and the put side of a chain.
func chainIVAverages(chain []contracts.OptionContract) (callIV, putIV float64) {
	var callSum, callW, putSum, putW float64
	for _, c := range chain {
		if c.ImpliedVolatility <= 0 {
			continue
		}
		w := float64(c.OpenInterest)
		if w <= 0 {
			w = 1
		}
		switch c.Right {
		case contracts.Call:
			callSum += c.ImpliedVolatility * w
			callW += w
		case contracts.Put:
			putSum += c.ImpliedVolatility * w
			putW += w
		}
	}
	if callW > 0 {
		callIV = callSum / callW
	}
	if putW > 0 {
		putIV = putSum / putW
	}
	return callIV, putIV
}
