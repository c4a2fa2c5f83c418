// agc.go
package qpskdemod

import "math/cmplx"

// agcPole is the AGC's per-sample smoothing step (the low-pass pole is
// 1-agcPole): closer to 0 means slower, smoother gain adjustment. This
// is the externally
// tunable smoothing constant spec §4.4 leaves to the implementation.
const agcPole = 0.001

// AGC is a first-order automatic gain control loop. Apply returns
// x*gain and updates gain towards target/|x|. For a stationary signal
// of constant magnitude A, gain converges to target/A within a bounded
// settling time (spec §8 invariant 3).
type AGC struct {
	gain   float32
	target float32
}

// NewAGC builds an AGC with the given target output magnitude and a
// starting gain of 1.
func NewAGC(target float32) *AGC {
	return &AGC{gain: 1, target: target}
}

// Apply normalizes x towards the AGC's target magnitude and updates
// the internal gain estimate.
func (a *AGC) Apply(x Sample) Sample {
	out := x * complex(a.gain, 0)

	mag := float32(cmplx.Abs(complex128(x)))
	if mag > 1e-12 {
		desired := a.target / mag
		a.gain += agcPole * (desired - a.gain)
	}
	if a.gain <= 0 {
		a.gain = 1e-6
	}
	return out
}

// Gain returns the AGC's current gain. Invariant: always > 0.
func (a *AGC) Gain() float32 { return a.gain }
