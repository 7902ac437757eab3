package common

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into one of the categories a transport can map
// to a status code.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	default:
		return "internal"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrorValidation
	case KindConflict:
		return ErrorAlreadyExists
	case KindUnauthorized:
		return ErrorUnauthorized
	case KindForbidden:
		return ErrorForbidden
	case KindNotFound:
		return ErrorNotFound
	default:
		return ErrorInternal
	}
}

func (k Kind) defaultMessage() string {
	switch k {
	case KindValidation:
		return "validation failed"
	case KindConflict:
		return "already exists"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	default:
		return "internal server error"
	}
}

// Error is the single error type services return. Op names the failing
// operation, Msg is the text safe to show to a caller and Err keeps the cause
// for logs.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// E builds an *Error of the given kind wrapping err.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Msgf builds an *Error with a caller-visible message.
func Msgf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.PublicMessage()
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match against the sentinel that corresponds to the kind, so
// errors.Is(err, ErrorUnauthorized) holds for every KindUnauthorized error.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// PublicMessage returns the message that may leave the process.
func (e *Error) PublicMessage() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.defaultMessage()
}

// KindOf extracts the kind of err. Plain sentinels are recognised too, and
// anything unknown is treated as internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrorValidation):
		return KindValidation
	case errors.Is(err, ErrorAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrorUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return KindUnauthorized
	case errors.Is(err, ErrorForbidden):
		return KindForbidden
	case errors.Is(err, ErrorNotFound):
		return KindNotFound
	}
	return KindInternal
}

// PublicMessage returns the caller-visible message of err. Errors that are
// not *Error never leak their text.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.PublicMessage()
	}
	return KindOf(err).defaultMessage()
}
