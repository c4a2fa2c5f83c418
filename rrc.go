// rrc.go
package qpskdemod

import "math"

// rrcSingularityEps is the half-width of the neighborhood around the
// 4*alpha*t == 1 singularity inside which the analytic (L'Hopital)
// limit is used instead of the naive formula, which would otherwise
// divide by (approximately) zero. The original C source does not
// special-case this point and can emit NaN for some (order, factor,
// alpha) triples; spec §3/§9 require it to resolve cleanly.
const rrcSingularityEps = 1e-6

// RRCTaps computes the time-domain taps of a root-raised-cosine filter
// with the given half-length order, oversampling factor and roll-off
// alpha, per spec §3. The number of taps is 2*order+1.
func RRCTaps(order, factor int, alpha float32) []float32 {
	n := 2*order + 1
	osf := float32(factor)
	taps := make([]float32, n)
	for k := 0; k < n; k++ {
		taps[k] = rrcCoeff(k, order, osf, alpha)
	}
	return taps
}

// NewRRC builds an FIR Filter from RRCTaps(order, factor, alpha).
func NewRRC(order, factor int, alpha float32) *Filter {
	return NewFIR(RRCTaps(order, factor, alpha))
}

// rrcCoeff computes a single RRC tap. stage is the tap index in
// [0, 2*order], order is the filter's half-length, osf is the samples-
// per-symbol (the interpolation factor), alpha the roll-off.
func rrcCoeff(stage, order int, osf, alpha float32) float32 {
	if stage == order {
		// Center tap: the removable 0/0 singularity at t=0.
		return 1 - alpha + 4*alpha/piF32
	}

	t := float32(absInt(order-stage)) / osf
	fourAlphaT := 4 * alpha * t

	if float32(math.Abs(float64(fourAlphaT-1))) < rrcSingularityEps {
		// Removable singularity at 4*alpha*t == 1: take the analytic
		// limit instead of dividing by (near) zero.
		return (alpha / float32(math.Sqrt2)) *
			((1+2/piF32)*float32(math.Sin(float64(piF32/(4*alpha)))) +
				(1-2/piF32)*float32(math.Cos(float64(piF32/(4*alpha)))))
	}

	num := float32(math.Sin(float64(piF32*t*(1-alpha)))) +
		fourAlphaT*float32(math.Cos(float64(piF32*t*(1+alpha))))
	den := piF32 * t * (1 - fourAlphaT*fourAlphaT)
	return num / den
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
