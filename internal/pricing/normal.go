package pricing

import "math"

// The standard normal CDF is sampled once at startup over [-4, 4] and
// evaluated by linear interpolation. Outside the domain the tails are
// clamped to 0 and 1; at z = 4 the true tail mass is below 4e-5, well
// under the interpolation tolerance.
const (
	cdfDomainMin = -4.0
	cdfDomainMax = 4.0
	cdfStep      = 0.001
)

type cdfTable struct {
	samples []float64
}

func newCDFTable() *cdfTable {
	n := int((cdfDomainMax-cdfDomainMin)/cdfStep) + 1
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		z := cdfDomainMin + float64(i)*cdfStep
		samples[i] = 0.5 * (1 + math.Erf(z/math.Sqrt2))
	}
	return &cdfTable{samples: samples}
}

// CDF returns the interpolated standard normal CDF at z.
func (t *cdfTable) CDF(z float64) float64 {
	if z <= cdfDomainMin {
		return 0.0
	}
	if z >= cdfDomainMax {
		return 1.0
	}

	pos := (z - cdfDomainMin) / cdfStep
	lo := int(pos)
	if lo >= len(t.samples)-1 {
		return t.samples[len(t.samples)-1]
	}
	frac := pos - float64(lo)
	return t.samples[lo] + frac*(t.samples[lo+1]-t.samples[lo])
}

// pdf is the standard normal density. It is cheap enough to evaluate
// directly; only the CDF goes through the table.
func pdf(z float64) float64 {
	return math.Exp(-z*z/2) / math.Sqrt(2*math.Pi)
}
