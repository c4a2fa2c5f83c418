// costas.go
package qpskdemod

import "math"

// Costas loop damping and lock-detector tunables. Lock/unlock
// thresholds are hysteretic: T_lock < T_unlock (spec §4.5, §8
// invariant 4).
const (
	costasDamping   = float32(0.70710678) // 1/sqrt(2)
	costasLockAvg   = 0.002               // moving-average pole for |e|
	costasTLock     = 0.08
	costasTUnlock   = 0.20
)

// Costas implements the QPSK decision-directed Costas loop of spec
// §4.5: a numerically-controlled oscillator whose phase/frequency are
// steered by a decision-directed error term, with loop constants
// derived from a configured normalized bandwidth and fixed damping via
// the standard second-order PLL mapping.
type Costas struct {
	phase float32
	freq  float32
	kp    float32
	ki    float32

	lockAvg float32
	locked  bool
}

// NewCostas builds a Costas loop for normalized bandwidth bw (radians
// per symbol, i.e. 2*pi*B/symRate — the caller computes this, per spec
// §4.7's demod_init convention).
func NewCostas(bw float32) *Costas {
	kp, ki := pllConstants(bw, costasDamping)
	return &Costas{kp: kp, ki: ki}
}

// pllConstants maps a normalized loop bandwidth and damping factor to
// proportional/integral loop-filter gains via the standard second-
// order PLL design equations.
func pllConstants(bw, zeta float32) (kp, ki float32) {
	theta := bw / (zeta + 1/(4*zeta))
	denom := 1 + 2*zeta*theta + theta*theta
	kp = 4 * zeta * theta / denom
	ki = 4 * theta * theta / denom
	return
}

// Resync rotates x by the current NCO phase, derives the QPSK phase
// error, advances the loop, and returns the corrected sample.
func (c *Costas) Resync(x Sample) Sample {
	rot := complex(float32(math.Cos(float64(-c.phase))), float32(math.Sin(float64(-c.phase))))
	y := x * rot

	re, im := real(y), imag(y)
	e := sign(re)*im - sign(im)*re

	c.freq += c.ki * e
	phaseStep := c.freq + c.kp*e
	c.phase = wrapPhase(c.phase + phaseStep)

	if re == 0 && im == 0 {
		// A zero sample carries no phase information; the lock
		// detector is left as it is.
		return y
	}

	c.lockAvg += costasLockAvg * (absF32(e) - c.lockAvg)
	if c.locked {
		if c.lockAvg > costasTUnlock {
			c.locked = false
		}
	} else {
		if c.lockAvg < costasTLock {
			c.locked = true
		}
	}

	return y
}

// Locked reports the hysteretic lock-detector state.
func (c *Costas) Locked() bool { return c.locked }

// FreqHz converts the loop's internal radians/symbol frequency to Hz
// given the configured symbol rate, per spec §4.5.
func (c *Costas) FreqHz(symRate float32) float32 {
	return c.freq * symRate / (2 * piF32)
}

func absF32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
