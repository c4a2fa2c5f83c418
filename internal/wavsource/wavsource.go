// Package wavsource implements qpskdemod.Source by decoding a two-channel
// (I, Q) interleaved PCM WAV file, using github.com/go-audio/wav and
// github.com/go-audio/audio — the same library pair used for reading a
// raw/WAV IQ capture in other_examples/teabreakninja-go-iq-decoder.
//
// WAV/file decoding is an external collaborator per the core spec
// (spec.md §1); this package is the concrete implementation the CLI
// front end wires up, not part of the specified DSP core.
package wavsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ab0rf/qpskdemod"
)

// Source reads interleaved I/Q samples from a PCM16 or Float32 WAV
// file and exposes them as qpskdemod.Sample values scaled to [-1, 1).
type Source struct {
	f   *os.File
	dec *wav.Decoder

	rate    uint32
	bitDep  int
	buf     *audio.IntBuffer
	samples []qpskdemod.Sample

	totalBytes uint64
	doneBytes  uint64
}

// Open opens path, validates it as a two-channel WAV file and returns
// a ready-to-read Source.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("wavsource: %s is not a valid WAV file", path)
	}
	dec.ReadInfo()
	if dec.NumChans != 2 {
		f.Close()
		return nil, fmt.Errorf("wavsource: expected 2 channels (I, Q), got %d", dec.NumChans)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Source{
		f:          f,
		dec:        dec,
		rate:       dec.SampleRate,
		bitDep:     int(dec.BitDepth),
		totalBytes: uint64(fi.Size()),
	}, nil
}

var _ qpskdemod.Source = (*Source)(nil)

func (s *Source) SampleRate() uint32  { return s.rate }
func (s *Source) BytesPerSample() int { return s.bitDep / 8 * 2 }
func (s *Source) Data() []qpskdemod.Sample { return s.samples }
func (s *Source) Size() uint64        { return s.totalBytes }
func (s *Source) Done() uint64        { return s.doneBytes }

func (s *Source) Close() error {
	return s.f.Close()
}

// Read decodes up to n stereo (I, Q) frames. produced == 0 always
// carries a non-nil error: qpskdemod.ErrSourceEOF at clean end of
// stream, or a qpskdemod.ErrSourceFault-wrapping error if the decoder
// fails or reports a negative or odd (non-stereo-aligned) sample count.
func (s *Source) Read(_ context.Context, n int) (int, error) {
	if n < 0 {
		return 0, qpskdemod.NewSourceFault(n)
	}
	if s.buf == nil || len(s.buf.Data) < n*2 {
		s.buf = &audio.IntBuffer{
			Format: &audio.Format{NumChannels: 2, SampleRate: int(s.rate)},
			Data:   make([]int, n*2),
		}
	}
	s.buf.Data = s.buf.Data[:n*2]

	read, err := s.dec.PCMBuffer(s.buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, qpskdemod.ErrSourceEOF
		}
		return 0, fmt.Errorf("wavsource: %w: %w", qpskdemod.ErrSourceFault, err)
	}
	if read < 0 || read%2 != 0 {
		return 0, qpskdemod.NewSourceFault(read)
	}
	frames := read / 2
	if frames == 0 {
		return 0, qpskdemod.ErrSourceEOF
	}

	if cap(s.samples) < frames {
		s.samples = make([]qpskdemod.Sample, frames)
	} else {
		s.samples = s.samples[:frames]
	}

	scale := float32(int(1) << (s.bitDep - 1))
	for i := 0; i < frames; i++ {
		iv := float32(s.buf.Data[i*2]) / scale
		qv := float32(s.buf.Data[i*2+1]) / scale
		s.samples[i] = complex(iv, qv)
	}
	s.doneBytes += uint64(frames * s.BytesPerSample())

	return frames, nil
}
