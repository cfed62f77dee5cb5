// Package mverr classifies the error kinds specified in §7 of the
// engine spec: InvalidInput (precondition violation), Corrupted
// (invariant violation, fatal at this layer), and Io (store failure).
// Not-found on an exact lookup is not an error: callers get ok=false.
// Remove or Update of a missing key returns an InvalidInput error.
package mverr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a returned error.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindCorrupted
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindCorrupted:
		return "corrupted"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// ErrIO is the sentinel wrapped around every store I/O failure that
// crosses into the core.
var ErrIO = errors.New("mvtree: store io error")

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// InvalidInput builds a precondition-violation error. These are
// surfaced to the caller and never recovered internally — duplicate
// key in non-dup mode, write version older than current_version,
// removing from a read-only view, and similar.
func InvalidInput(format string, args ...any) error {
	return &kindError{kind: KindInvalidInput, err: fmt.Errorf(format, args...)}
}

// Corrupted builds an invariant-violation error, wrapped with
// github.com/pkg/errors so the stack trace at the point of detection
// survives past the point the caller discards the tree handle — the
// only diagnostic left once a Corrupted error is returned, since §7
// treats this class as fatal at this layer.
func Corrupted(format string, args ...any) error {
	return &kindError{kind: KindCorrupted, err: pkgerrors.Errorf(format, args...)}
}

// IO wraps a store failure with ErrIO so callers can match it with
// errors.Is regardless of the underlying PageStore implementation.
func IO(op string, pageID uint64, err error) error {
	wrapped := fmt.Errorf("%w: %s page %d: %v", ErrIO, op, pageID, err)
	return &kindError{kind: KindIO, err: wrapped}
}

// KindOf classifies err by unwrapping to the innermost *kindError.
// Errors not produced by this package classify as KindUnknown.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}
