package shared

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced to callers.
type Kind uint8

const (
	// KindInternal covers store and transaction failures.
	KindInternal Kind = iota
	// KindNotFound indicates a missing product, PO, return, supplier or order.
	KindNotFound
	// KindInvalidArgument indicates malformed input.
	KindInvalidArgument
	// KindInvalidTransition indicates a status-guarded operation out of order.
	KindInvalidTransition
	// KindConflict indicates a concurrent mutation on the same aggregate.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the structured error returned by domain services.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a cause-free *Error of the same kind. A target with a message
// (a package sentinel) additionally requires the same message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	if t.Msg != "" && t.Msg != e.Msg {
		return false
	}
	return e.Kind == t.Kind
}

var (
	// ErrNotFound matches every error of KindNotFound.
	ErrNotFound = &Error{Kind: KindNotFound}
	// ErrInvalidArgument matches every error of KindInvalidArgument.
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	// ErrInvalidTransition matches every error of KindInvalidTransition.
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	// ErrConflict matches every error of KindConflict.
	ErrConflict = &Error{Kind: KindConflict}
	// ErrInternal matches every error of KindInternal.
	ErrInternal = &Error{Kind: KindInternal}
)

// NewError builds a sentinel for a domain package, e.g.
// procurement.ErrPONotFound.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// NotFound formats a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// InvalidArgument formats a KindInvalidArgument error.
func InvalidArgument(format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

// InvalidTransition formats a KindInvalidTransition error.
func InvalidTransition(format string, args ...any) error {
	return &Error{Kind: KindInvalidTransition, Msg: fmt.Sprintf(format, args...)}
}

// Conflict formats a KindConflict error.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches op context and a cause to a sentinel while keeping its kind.
func Wrap(sentinel *Error, op string, err error) error {
	return &Error{Kind: sentinel.Kind, Op: op, Msg: sentinel.Msg, Err: err}
}

// Internal wraps a store failure. Errors that already carry a kind pass
// through unchanged so a NotFound raised inside a transaction stays NotFound.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// KindOf reports the kind of err; unknown errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
