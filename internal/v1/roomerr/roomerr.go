// Package roomerr defines the typed error kinds the wire protocol exposes
// as error{message} (spec §7): protocol, role, state, not-found, validation,
// and dependency errors. Handlers build *Error values whose Unwrap returns
// the sentinel for their kind, and callers classify the result with
// errors.Is/errors.As instead of matching on message strings.
package roomerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for wire-protocol translation.
type Kind int

const (
	KindProtocol Kind = iota
	KindRole
	KindState
	KindNotFound
	KindValidation
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindRole:
		return "role"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindDependency:
		return "dependency"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is comparisons. Callers build concrete errors with
// New/Newf rather than returning these directly.
var (
	ErrProtocol   = errors.New("protocol error")
	ErrRole       = errors.New("role violation")
	ErrState      = errors.New("state violation")
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrDependency = errors.New("dependency error")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindProtocol:
		return ErrProtocol
	case KindRole:
		return ErrRole
	case KindState:
		return ErrState
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindDependency:
		return ErrDependency
	default:
		return ErrProtocol
	}
}

// Error is a typed room-level error carrying a wire-safe message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return sentinelFor(e.Kind)
}

// Cause returns the wrapped underlying error, if any.
func (e *Error) Cause() error {
	return e.cause
}

// New creates a typed error with a wire-safe message.
func New(k Kind, message string) *Error {
	return &Error{Kind: k, Message: message}
}

// Newf creates a typed error with a formatted wire-safe message.
func Newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to a typed error. The cause appears in
// Error() but is never rendered to the wire by WireMessage.
func Wrap(k Kind, message string, cause error) *Error {
	return &Error{Kind: k, Message: message, cause: cause}
}

// Protocol, Role, State, NotFound, Validation, Dependency are convenience
// constructors mirroring spec §7's five-plus-one kinds.
func Protocol(format string, args ...any) *Error {
	return Newf(KindProtocol, format, args...)
}

func Role(format string, args ...any) *Error {
	return Newf(KindRole, format, args...)
}

func State(format string, args ...any) *Error {
	return Newf(KindState, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return Newf(KindNotFound, format, args...)
}

func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

func Dependency(message string, cause error) *Error {
	return Wrap(KindDependency, message, cause)
}

// WireMessage renders the message that is safe to put on the wire as
// error{message}. Dependency errors never leak the underlying cause's text
// unless it has already been folded into Message by the caller.
func WireMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// As reports whether err is a *Error and, if so, returns it.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
