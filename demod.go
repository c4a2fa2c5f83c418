// Package qpskdemod implements a soft-decision QPSK demodulator for a
// complex baseband signal: interpolation, RRC matched filtering, AGC,
// Gardner timing recovery and a Costas carrier tracker, run on a
// dedicated worker goroutine with a safe status-query surface for the
// caller.
//
// The package borrows its idiom from a C-derived Go DSP library: small
// value-ish types with explicit constructors, deterministic single-
// threaded advance functions, and a thin driver that owns everything
// except the caller-supplied source and sink.
package qpskdemod

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Sample is the complex baseband sample type used throughout the core.
type Sample = complex64

// Default tunables, matching the original Meteor-M2 LRPT demodulator's
// command-line defaults.
const (
	DefaultChunkSize    = 4096
	DefaultSymChunkSize = 2048 // must stay even, see Config.validate
)

// Config holds the construction-time parameters of a Demod.
type Config struct {
	// L is the interpolation factor applied before RRC matched filtering.
	L int
	// RRCOrder is the RRC filter's half-length in symbols.
	RRCOrder int
	// Alpha is the RRC roll-off, 0 < Alpha <= 1.
	Alpha float32
	// PLLBandwidthHz is the Costas loop's bandwidth in Hz.
	PLLBandwidthHz float32
	// SymbolRate is the nominal symbol rate in symbols/second.
	SymbolRate float32

	// ChunkSize is the number of interpolated samples read per worker
	// iteration. Defaults to DefaultChunkSize when zero.
	ChunkSize int
	// SymChunkSize is the output flush threshold in bytes. Must be even.
	// Defaults to DefaultSymChunkSize when zero.
	SymChunkSize int

	// Logger receives lifecycle events (start, lock changes, faults,
	// stop). A discarding logger is used when nil.
	Logger *log.Logger
}

func (c *Config) validate() error {
	if c.L <= 0 {
		return newConfigError("L", "interpolation factor must be positive")
	}
	if c.RRCOrder <= 0 {
		return newConfigError("RRCOrder", "must be positive")
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		return newConfigError("Alpha", "must be in (0, 1]")
	}
	if c.SymbolRate <= 0 {
		return newConfigError("SymbolRate", "must be positive")
	}
	if c.ChunkSize < 0 {
		return newConfigError("ChunkSize", "must not be negative")
	}
	if c.SymChunkSize < 0 || c.SymChunkSize%2 != 0 {
		return newConfigError("SymChunkSize", "must be even and non-negative")
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ChunkSize == 0 {
		out.ChunkSize = DefaultChunkSize
	}
	if out.SymChunkSize == 0 {
		out.SymChunkSize = DefaultSymChunkSize
	}
	if out.Logger == nil {
		out.Logger = log.New(discardWriter{})
	}
	return out
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Demod owns the whole DSP pipeline except the caller-supplied source
// and sink. It is constructed with New, run with Start on a dedicated
// worker goroutine, and torn down with Stop+Join.
type Demod struct {
	cfg Config
	src Source

	interp *Interpolator
	agc    *AGC
	costas *Costas
	gdn    *Gardner

	symRate    float32
	symPeriod  float32
	bytesOut   atomic.Uint64
	running    atomic.Bool
	pllLocked  atomic.Bool
	freqHzBits atomic.Uint32 // math.Float32bits snapshot
	gainBits   atomic.Uint32

	mu      sync.Mutex
	lastErr error

	cancel context.CancelFunc
	done   chan struct{}

	log *log.Logger
}

// New constructs the demodulator stages and wires the interpolator onto
// src. It discards the interpolator's warm-up transient (order*L
// samples) synchronously, per spec. Returns ErrConfigInvalid wrapped
// with the offending field if cfg fails validation; no worker is
// spawned in that case.
func New(cfg Config, src Source) (*Demod, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	rrc := NewRRC(cfg.RRCOrder, cfg.L, cfg.Alpha)
	interp := newInterpolator(src, rrc, cfg.L)

	pllBw := 2 * piF32 * cfg.PLLBandwidthHz / cfg.SymbolRate
	costas := NewCostas(pllBw)

	symPeriod := float32(interp.SampleRate()) / cfg.SymbolRate

	d := &Demod{
		cfg:       cfg,
		src:       src,
		interp:    interp,
		agc:       NewAGC(1.0),
		costas:    costas,
		gdn:       NewGardner(symPeriod, gardnerLoopGain),
		symRate:   cfg.SymbolRate,
		symPeriod: symPeriod,
		log:       cfg.Logger,
	}

	// Discard the warm-up transient: order*L interpolated samples.
	warmup := cfg.RRCOrder * cfg.L
	for warmup > 0 {
		n := warmup
		if n > cfg.ChunkSize {
			n = cfg.ChunkSize
		}
		got, err := interp.Read(context.Background(), n)
		if err != nil && got == 0 {
			break
		}
		warmup -= got
		if got == 0 {
			break
		}
	}

	return d, nil
}

// Start spawns the worker goroutine that runs the demodulation loop,
// reading interpolated blocks until the source signals end-of-stream,
// a fatal error occurs, or ctx is cancelled / Stop is called. Output
// bytes are written to sink in bursts of at most cfg.SymChunkSize.
func (d *Demod) Start(ctx context.Context, sink Sink) error {
	workerCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running.Store(true)

	go d.run(workerCtx, sink)
	return nil
}

// Stop requests the worker to terminate. It does not block; call Join
// to wait for the worker to finish flushing and releasing resources.
func (d *Demod) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// Join blocks until the worker has exited, flushed its output and the
// source has been closed, then returns any fatal error encountered
// (nil on a clean ErrSourceEOF termination or a caller-requested stop).
func (d *Demod) Join() error {
	if d.done != nil {
		<-d.done
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Running reports whether the worker is still processing samples.
func (d *Demod) Running() bool { return d.running.Load() }

// PLLLocked reports the Costas loop's current lock state.
func (d *Demod) PLLLocked() bool { return d.pllLocked.Load() }

// BytesOut returns the number of output bytes emitted so far.
func (d *Demod) BytesOut() uint64 { return d.bytesOut.Load() }

// Done returns the number of input bytes consumed from the source so far.
func (d *Demod) Done() uint64 { return d.src.Done() }

// Size returns the total size of the source, in bytes.
func (d *Demod) Size() uint64 { return d.src.Size() }

// FreqHz returns the Costas loop's current frequency estimate in Hz.
func (d *Demod) FreqHz() float32 { return float32frombits(d.freqHzBits.Load()) }

// Gain returns the AGC's current gain.
func (d *Demod) Gain() float32 { return float32frombits(d.gainBits.Load()) }

// Err returns the fatal error that stopped the worker, if any. It is
// equivalent to calling Join after the worker has already exited.
func (d *Demod) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Demod) setErr(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
}

func (d *Demod) run(ctx context.Context, sink Sink) {
	defer close(d.done)
	defer d.running.Store(false)
	defer d.interp.Close()

	outBuf := make([]byte, 0, d.cfg.SymChunkSize)

	flush := func() error {
		if len(outBuf) == 0 {
			return nil
		}
		if _, err := sink.Write(outBuf); err != nil {
			return &sinkFault{err: err}
		}
		outBuf = outBuf[:0]
		return nil
	}

	d.log.Info("demodulator starting", "symbolRate", d.symRate, "period", d.symPeriod)

	for {
		select {
		case <-ctx.Done():
			if err := flush(); err != nil {
				d.setErr(err)
				d.log.Error("sink fault", "err", err)
			}
			sink.Close()
			d.log.Info("demodulator stopped by caller")
			return
		default:
		}

		n, err := d.interp.Read(ctx, d.cfg.ChunkSize)
		if n == 0 {
			if err != nil && !errors.Is(err, ErrSourceEOF) {
				d.setErr(err)
				d.log.Error("source fault", "err", err)
			} else {
				d.log.Info("demodulator reached end of input")
			}
			if ferr := flush(); ferr != nil && d.Err() == nil {
				d.setErr(ferr)
				d.log.Error("sink fault", "err", ferr)
			}
			sink.Close()
			return
		}

		data := d.interp.Data()[:n]
		for i := 0; i < n; i++ {
			sym, ready := d.gdn.Step(data[i], d.agc)
			if !ready {
				continue
			}

			sym = d.costas.Resync(sym)
			locked := d.costas.Locked()
			if locked != d.pllLocked.Load() {
				d.log.Info("PLL lock changed", "locked", locked)
			}
			d.pllLocked.Store(locked)
			d.freqHzBits.Store(float32bits(d.costas.FreqHz(d.symRate)))
			d.gainBits.Store(float32bits(d.agc.Gain()))

			outBuf = append(outBuf, clampByte(real(sym)/2), clampByte(imag(sym)/2))
			d.bytesOut.Add(2)

			if len(outBuf) >= d.cfg.SymChunkSize {
				if err := flush(); err != nil {
					d.setErr(err)
					d.log.Error("sink fault", "err", err)
					sink.Close()
					return
				}
			}
		}
	}
}
