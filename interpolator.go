// interpolator.go
package qpskdemod

import (
	"context"
	"math"
)

var invSqrt2 = float32(1 / math.Sqrt2)

// Interpolator implements Source: the driver can read interpolated
// samples through the same contract as the raw source it wraps.
var _ Source = (*Interpolator)(nil)

// Interpolator wraps a backend Source at rate Fs and exposes a Source
// at rate L*Fs: for each requested output block of n samples, it reads ceil(n/L)
// input samples from the backend, upsamples by zero-order repetition
// (index i of the output reads input sample floor(i/L)) and pushes the
// result through an RRC matched filter, per spec §4.3. It is itself a
// Source, so it can be chained or substituted for the raw source.
type Interpolator struct {
	src    Source
	rrc    *Filter
	factor int

	rate uint32
	buf  []Sample
	done uint64
}

func newInterpolator(src Source, rrc *Filter, factor int) *Interpolator {
	return &Interpolator{
		src:    src,
		rrc:    rrc,
		factor: factor,
		rate:   src.SampleRate() * uint32(factor),
	}
}

// SampleRate returns L*Fs.
func (ip *Interpolator) SampleRate() uint32 { return ip.rate }

// BytesPerSample mirrors the backend's reported size (the underlying
// samples are the same width; only the rate changes).
func (ip *Interpolator) BytesPerSample() int { return ip.src.BytesPerSample() }

// Data returns the most recently produced interpolated block.
func (ip *Interpolator) Data() []Sample { return ip.buf }

// Size returns the backend source's total size.
func (ip *Interpolator) Size() uint64 { return ip.src.Size() }

// Done returns the number of backend bytes consumed so far.
func (ip *Interpolator) Done() uint64 { return ip.src.Done() }

// Close closes the backend source and releases the RRC filter.
func (ip *Interpolator) Close() error {
	ip.rrc = nil
	return ip.src.Close()
}

// Read produces up to n interpolated samples. It reads ceil(n/factor)
// samples from the backend; if the backend returns 0 (end-of-stream or
// fault), Read returns 0 and propagates the backend's error. The
// returned buffer may be reallocated relative to a previous call, per
// spec §3.
func (ip *Interpolator) Read(ctx context.Context, n int) (int, error) {
	if cap(ip.buf) < n {
		ip.buf = make([]Sample, n)
	} else {
		ip.buf = ip.buf[:n]
	}

	trueCount := (n + ip.factor - 1) / ip.factor
	got, err := ip.src.Read(ctx, trueCount)
	if got == 0 {
		return 0, err
	}

	backend := ip.src.Data()
	available := got * ip.factor
	if available < n {
		n = available
		ip.buf = ip.buf[:n]
	}

	for i := 0; i < n; i++ {
		x := backend[i/ip.factor]
		ip.buf[i] = ip.rrc.Advance(x) * complex(invSqrt2, 0)
	}
	ip.done = ip.src.Done()

	return n, nil
}
