package shmipc

import (
	"errors"
	"fmt"
	"syscall"
)

// Error is a structured shmipc error carrying the operation that
// failed, its high-level kind, and the underlying errno when the
// failure originated in a backend syscall.
type Error struct {
	Op    string // operation that failed, e.g. "CreateRegion", "AttachRegion"
	Kind  Kind   // high-level error category
	Errno syscall.Errno
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Errno != 0 {
		return fmt.Sprintf("shmipc: %s (op=%s errno=%d)", msg, e.Op, e.Errno)
	}
	if e.Op != "" {
		return fmt.Sprintf("shmipc: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("shmipc: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Kind == te.Kind
	}
	return false
}

// Kind is the error taxonomy named by the operation's design: kinds,
// not concrete type names, so callers branch on what went wrong rather
// than where.
type Kind string

const (
	KindAllocationFailure Kind = "allocation failure"
	KindInvalidArgument   Kind = "invalid argument"
	KindBackendFailure    Kind = "backend failure"
	KindCapacityExceeded  Kind = "capacity exceeded"
	KindNotAvailable      Kind = "not available"
	KindNotInitialized    Kind = "not initialized"
	KindLookupMiss        Kind = "lookup miss"
)

// NewError creates a plain structured error with no errno attached.
func NewError(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// NewBackendError wraps a backend syscall failure, inferring its errno
// when the underlying error carries one.
func NewBackendError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if se, ok := existingError(inner); ok {
		return &Error{Op: op, Kind: se.Kind, Errno: se.Errno, Msg: se.Msg, Inner: se.Inner}
	}
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{Op: op, Kind: KindBackendFailure, Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Kind: KindBackendFailure, Msg: inner.Error(), Inner: inner}
}

func existingError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// IsErrno reports whether err is a *Error carrying the given errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Errno == errno
	}
	return false
}
