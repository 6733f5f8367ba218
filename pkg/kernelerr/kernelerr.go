// Package kernelerr defines the error taxonomy shared by every kernel
// component: a closed set of Kinds plus a wrapping Error type that is
// compatible with errors.Is and errors.As.
package kernelerr

import (
	"errors"
	"fmt"
)

// Kind is a closed enumeration of the error categories every component
// classifies its failures into. Recovery policy is a function of Kind
// alone (see Recoverable).
type Kind string

const (
	NotFound              Kind = "not_found"
	AlreadyExists         Kind = "already_exists"
	ValidationError       Kind = "validation_error"
	Cycle                 Kind = "cycle"
	ConstraintUnsatisfied Kind = "constraint_unsatisfied"
	PermissionDenied      Kind = "permission_denied"
	Timeout               Kind = "timeout"
	Transport             Kind = "transport"
	MaxRetriesExceeded    Kind = "max_retries_exceeded"
	Protocol              Kind = "protocol"
	Corrupted             Kind = "corrupted"
	Cancelled             Kind = "cancelled"
)

// Error is the concrete error value produced by kernel components. Op
// names the failing operation (e.g. "tool.register"); Err, if non-nil, is
// the underlying cause and participates in errors.Unwrap chains.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, allowing
// callers to write errors.Is(err, kernelerr.New("", kernelerr.NotFound)) or,
// more idiomatically, kernelerr.Is(err, kernelerr.NotFound) via the
// package-level Is helper below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an Error with no wrapped cause.
func New(op string, kind Kind) *Error {
	return &Error{Op: op, Kind: kind}
}

// Wrap constructs an Error wrapping an existing cause.
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Is reports whether the first *Error in err's wrap chain carries kind.
// Kinds of *Error values wrapped beneath that one are not consulted.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// RecoveryStrategy classifies how a caller should react to an error Kind,
// per the spec's recovery-strategy table.
type RecoveryStrategy string

const (
	StrategyRetry               RecoveryStrategy = "retry"
	StrategyFail                RecoveryStrategy = "fail"
	StrategyFallback            RecoveryStrategy = "fallback"
	StrategyGracefulDegradation RecoveryStrategy = "graceful_degradation"
)

// Recoverable maps an error Kind to its recovery strategy: Timeout and
// Transport map to Retry; NotFound, AlreadyExists, ValidationError,
// PermissionDenied, Cycle, ConstraintUnsatisfied, Protocol and
// MaxRetriesExceeded map to Fail; Corrupted maps to Fallback; every other
// kind, Cancelled included, maps to GracefulDegradation.
func Recoverable(kind Kind) RecoveryStrategy {
	switch kind {
	case Timeout, Transport:
		return StrategyRetry
	case NotFound, AlreadyExists, ValidationError, PermissionDenied, Cycle, ConstraintUnsatisfied, Protocol, MaxRetriesExceeded:
		return StrategyFail
	case Corrupted:
		return StrategyFallback
	default:
		return StrategyGracefulDegradation
	}
}
