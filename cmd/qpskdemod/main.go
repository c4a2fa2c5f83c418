// Command qpskdemod is the command-line front end for the QPSK
// soft-decision demodulator. It wires a WAV-backed sample source and a
// file (or TCP) sink onto the demod core, and polls the core's status
// surface while it runs.
//
// The CLI itself, its flags and progress reporting are an external
// collaborator of the DSP core (spec.md §1) — all of the hard
// engineering lives in the demod package this command merely wires up.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/ab0rf/qpskdemod"
	"github.com/ab0rf/qpskdemod/internal/sink"
	"github.com/ab0rf/qpskdemod/internal/wavsource"
)

func main() {
	var (
		outFile    = pflag.StringP("output", "o", "", "output file for decoded soft symbols (default: generated)")
		pllBw      = pflag.Float32P("pll-bw", "b", 100, "Costas loop bandwidth, in Hz")
		symRate    = pflag.Float32P("rate", "r", 72000, "symbol rate, in symbols/second")
		oversample = pflag.IntP("oversamp", "s", 4, "interpolator oversampling factor")
		rrcOrder   = pflag.IntP("rrc-order", "f", 64, "RRC filter half-length, in symbols")
		rrcAlpha   = pflag.Float32P("rrc-alpha", "a", 0.6, "RRC roll-off")
		tcpSink    = pflag.String("tcp", "", "stream output to host:port instead of a file")
		quiet      = pflag.BoolP("quiet", "q", false, "suppress progress logging")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] file_in\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	logger := log.New(os.Stderr)
	if *quiet {
		logger.SetLevel(log.ErrorLevel)
	}

	if pflag.NArg() < 1 {
		pflag.Usage()
		os.Exit(1)
	}
	inPath := pflag.Arg(0)

	src, err := wavsource.Open(inPath)
	if err != nil {
		logger.Fatal("could not open input", "err", err)
	}

	var out qpskdemod.Sink
	if *tcpSink != "" {
		out, err = sink.DialTCP(*tcpSink)
	} else {
		name := *outFile
		if name == "" {
			name = genFilename()
		}
		out, err = sink.OpenFile(name)
	}
	if err != nil {
		logger.Fatal("could not open output", "err", err)
	}

	cfg := qpskdemod.Config{
		L:              *oversample,
		RRCOrder:       *rrcOrder,
		Alpha:          *rrcAlpha,
		PLLBandwidthHz: *pllBw,
		SymbolRate:     *symRate,
		Logger:         logger,
	}

	d, err := qpskdemod.New(cfg, src)
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		cancel()
	}()

	if err := d.Start(ctx, out); err != nil {
		logger.Fatal("could not start demodulator", "err", err)
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for d.Running() {
		<-ticker.C
		if !*quiet {
			total := d.Size()
			pct := 0.0
			if total > 0 {
				pct = float64(d.Done()) / float64(total) * 100
			}
			logger.Info("progress",
				"pct", fmt.Sprintf("%.1f", pct),
				"freqHz", fmt.Sprintf("%+.1f", d.FreqHz()),
				"locked", d.PLLLocked(),
				"bytesOut", d.BytesOut(),
			)
		}
	}

	if err := d.Join(); err != nil {
		logger.Error("demodulator exited with error", "err", err)
		os.Exit(1)
	}
	logger.Info("decoding completed", "bytesOut", d.BytesOut())
}

func genFilename() string {
	return fmt.Sprintf("qpskdemod_%s.s8", time.Now().Format("2006_01_02-15_04"))
}
