// Package apperr defines the failure taxonomy shared by the journey core and
// its remote collaborators.
//
// Every failure carries a Kind so callers can decide how to react without
// string matching: transport and upstream failures are retryable inside the
// lookup helper, validation failures are rejected at the state-machine
// boundary, and exhaustion marks a retry loop that ran out of attempts.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure.
type Kind int

const (
	// KindTransport is a network or I/O failure.
	KindTransport Kind = iota + 1
	// KindUpstream is an error status or malformed payload from a remote service.
	KindUpstream
	// KindValidation is missing or invalid input; the operation was not attempted.
	KindValidation
	// KindExhaustion means all retries were consumed without success.
	KindExhaustion
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUpstream:
		return "upstream"
	case KindValidation:
		return "validation"
	case KindExhaustion:
		return "exhaustion"
	default:
		return "unknown"
	}
}

// Error is a categorized failure of a named operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failure", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport wraps err as a transport failure of op.
func Transport(op string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// Upstream wraps err as an upstream failure of op.
func Upstream(op string, err error) error {
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

// Upstreamf builds an upstream failure from a format string.
func Upstreamf(op, format string, args ...any) error {
	return &Error{Kind: KindUpstream, Op: op, Err: fmt.Errorf(format, args...)}
}

// Validation wraps err as a validation failure of op.
func Validation(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// Exhaustion wraps err as an exhaustion failure of op.
func Exhaustion(op string, err error) error {
	return &Error{Kind: KindExhaustion, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
