// source.go
package qpskdemod

import (
	"context"
	"io"
)

// Source is the abstract sample source contract of spec §3/§6. A
// successful Read(n) leaves Data()[:produced] holding the newest
// samples; produced <= n; produced == 0 always carries a non-nil error
// wrapping either ErrSourceEOF (clean end of stream) or ErrSourceFault
// (the backend reported a negative or otherwise impossible size) — the
// driver distinguishes the two with errors.Is. The slice returned by
// Data may be reallocated on the next call to Read — callers must not
// retain it across calls.
type Source interface {
	// SampleRate is the source's sample rate in Hz.
	SampleRate() uint32
	// BytesPerSample is the size, in bytes, of one underlying sample
	// as stored by the source (informational; the in-memory
	// representation is always a Sample).
	BytesPerSample() int
	// Data returns the most recently read block. Valid until the next
	// call to Read.
	Data() []Sample
	// Read reads up to n samples, returning the number produced.
	// produced == 0 always carries a non-nil error (ErrSourceEOF or
	// ErrSourceFault-wrapping).
	Read(ctx context.Context, n int) (produced int, err error)
	// Close releases the source's resources.
	Close() error
	// Size returns the source's total size in bytes, if known (0 if
	// unbounded/unknown, e.g. a live stream).
	Size() uint64
	// Done returns the number of bytes consumed from the source so far.
	Done() uint64
}

// Sink is the output byte sink of spec §6: interleaved signed-8-bit
// I,Q pairs, one pair per recovered symbol, no framing, written in
// bursts of at most Config.SymChunkSize bytes.
type Sink interface {
	io.Writer
	Close() error
}

// memSource is a slice-backed Source used by tests and the end-to-end
// scenarios of spec §8. It never reallocates its buffer smaller than
// requested and reports EOF once the backing slice is exhausted.
type memSource struct {
	rate    uint32
	samples []Sample
	pos     int
	buf     []Sample
	done    uint64
}

// newMemSource builds a Source that yields samples from a fixed,
// in-memory slice — the test double used throughout this package's
// unit tests and in the end-to-end scenarios of spec §8.
func newMemSource(rate uint32, samples []Sample) *memSource {
	return &memSource{rate: rate, samples: samples}
}

func (s *memSource) SampleRate() uint32    { return s.rate }
func (s *memSource) BytesPerSample() int   { return 8 } // 2x float32
func (s *memSource) Data() []Sample        { return s.buf }
func (s *memSource) Close() error          { return nil }
func (s *memSource) Size() uint64          { return uint64(len(s.samples)) * 8 }
func (s *memSource) Done() uint64          { return s.done }

func (s *memSource) Read(_ context.Context, n int) (int, error) {
	if n < 0 {
		return 0, &sourceFault{size: n}
	}
	if cap(s.buf) < n {
		s.buf = make([]Sample, n)
	} else {
		s.buf = s.buf[:n]
	}
	remaining := len(s.samples) - s.pos
	if remaining <= 0 {
		return 0, ErrSourceEOF
	}
	if n > remaining {
		n = remaining
	}
	copy(s.buf, s.samples[s.pos:s.pos+n])
	s.buf = s.buf[:n]
	s.pos += n
	s.done += uint64(n) * 8
	return n, nil
}
