// gardner.go
package qpskdemod

// gardnerLoopGain is the timing-error loop gain G (spec §4.6, §9 Open
// Question): each recovered symbol moves the offset by
// timingErr*period/G. It is a named, tunable constant rather than a
// magic number in the loop body; its default keeps the original
// source's divisor of 2e6, which amounts to a very small step size.
// With AGC-normalized samples |timingErr| stays around 2 or less, so the
// correction is at most about 2*period/G (1e-6 of a period) per symbol:
// a 10% offset perturbation or a 0.3-sample timing offset is not pulled
// in within one symbol or within 200 symbols, but over many thousands.
const gardnerLoopGain = 2_000_000.0

// Gardner implements the non-data-aided timing-error detector of spec
// §4.6. It runs over the interpolated stream (rate L*Fs), tracking a
// fractional offset against a nominal samples-per-symbol period and
// emitting one recovered symbol (after AGC) each time the offset
// crosses a full period.
type Gardner struct {
	offset float32
	period float32
	gain   float32

	before, mid, cur Sample
}

// NewGardner builds a Gardner recovery loop for the given nominal
// period (samples/symbol) and loop gain.
func NewGardner(period, gain float32) *Gardner {
	return &Gardner{period: period, gain: gain}
}

// Step advances the timing loop by one interpolated input sample x,
// applying agc to the samples captured at the mid- and end-symbol
// windows. It returns (symbol, true) exactly once per recovered
// symbol; otherwise (zero, false).
func (g *Gardner) Step(x Sample, agc *AGC) (Sample, bool) {
	var out Sample
	ready := false

	switch {
	case g.offset >= g.period/2 && g.offset < g.period/2+1:
		g.mid = agc.Apply(x)
	case g.offset >= g.period:
		g.cur = agc.Apply(x)

		// Edge policy: long input gaps can push offset past 2*period;
		// iterate the subtraction until within one period (spec §4.6).
		for g.offset >= g.period {
			g.offset -= g.period
		}

		timingErr := (imag(g.cur) - imag(g.before)) * imag(g.mid)
		g.offset += timingErr * g.period / g.gain
		g.before = g.cur

		out = g.cur
		ready = true
	}

	g.offset++
	return out, ready
}

// Offset returns the current fractional timing accumulator, mostly
// useful for convergence tests (spec §8 scenario 4).
func (g *Gardner) Offset() float32 { return g.offset }
