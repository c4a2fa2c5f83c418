// errors.go
package qpskdemod

import (
	"errors"
	"fmt"
)

// Sentinel errors the core recognizes. Callers should compare against
// these with errors.Is, since the concrete error returned is usually
// wrapped with context (offending field, underlying I/O error, etc).
var (
	// ErrSourceEOF marks a normal end of stream. The worker flushes and
	// exits cleanly; Join returns nil.
	ErrSourceEOF = errors.New("demod: source end of stream")

	// ErrSourceFault means the backend source reported an impossible or
	// negative size. Fatal: the worker flushes what it can and exits.
	ErrSourceFault = errors.New("demod: source fault")

	// ErrSinkFault means a write to the output sink failed. Fatal.
	ErrSinkFault = errors.New("demod: sink fault")

	// ErrConfigInvalid is returned synchronously from New when the
	// configuration fails validation. No worker is spawned.
	ErrConfigInvalid = errors.New("demod: invalid configuration")
)

// configError wraps ErrConfigInvalid with the offending field so callers
// get a precise diagnostic while still matching errors.Is(err, ErrConfigInvalid).
type configError struct {
	field string
	msg   string
}

func (e *configError) Error() string {
	return fmt.Sprintf("demod: invalid configuration: %s: %s", e.field, e.msg)
}

func (e *configError) Unwrap() error {
	return ErrConfigInvalid
}

func newConfigError(field, msg string) error {
	return &configError{field: field, msg: msg}
}

// NewSourceFault wraps ErrSourceFault with the reported (bad) size, for
// use by Source implementations outside this package (e.g. a decoder
// that detects a negative or otherwise impossible frame count).
func NewSourceFault(size int) error {
	return &sourceFault{size: size}
}

// sourceFault wraps ErrSourceFault with the reported (bad) size.
type sourceFault struct {
	size int
}

func (e *sourceFault) Error() string {
	return fmt.Sprintf("demod: source returned impossible size %d", e.size)
}

func (e *sourceFault) Unwrap() error {
	return ErrSourceFault
}

// sinkFault wraps ErrSinkFault with the underlying write error.
type sinkFault struct {
	err error
}

func (e *sinkFault) Error() string {
	return fmt.Sprintf("demod: sink write failed: %v", e.err)
}

func (e *sinkFault) Unwrap() []error {
	return []error{ErrSinkFault, e.err}
}
