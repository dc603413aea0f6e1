package universe

import "github.com/danielhan-dev/strikescan/internal/contracts"

// Criteria are the pure in-memory predicates applied over a snapshot.
// Zero values disable a bound; no I/O happens during filtering.
type Criteria struct {
	MinPrice     float64
	MaxPrice     float64
	MinVolume    int64
	MinMarketCap float64
	AllowList    []string
}

// Filter applies the criteria over a snapshot and returns the surviving
// entries. The snapshot itself is never mutated.
func Filter(snap *contracts.UniverseSnapshot, criteria Criteria) []contracts.UniverseEntry {
	var allow map[string]bool
	if len(criteria.AllowList) > 0 {
		allow = make(map[string]bool, len(criteria.AllowList))
		for _, t := range criteria.AllowList {
			allow[t] = true
		}
	}

	out := make([]contracts.UniverseEntry, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		if allow != nil && !allow[e.Ticker] {
			continue
		}
		if criteria.MinPrice > 0 && e.Price < criteria.MinPrice {
			continue
		}
		if criteria.MaxPrice > 0 && e.Price > criteria.MaxPrice {
			continue
		}
		if criteria.MinVolume > 0 && e.Volume < criteria.MinVolume {
			continue
		}
		if criteria.MinMarketCap > 0 && e.MarketCap > 0 && e.MarketCap < criteria.MinMarketCap {
			continue
		}
		out = append(out, e)
	}

	return out
}
