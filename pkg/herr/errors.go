// Package herr defines the structured error taxonomy shared by every
// component of the hub. Errors are propagated as typed kinds rather than
// strings so that transport layers (HTTP, runbook findings) can branch on
// them without parsing messages.
package herr

import "fmt"

// Kind classifies an error for propagation and transport-status mapping.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not-found"
	KindConflict    Kind = "conflict"
	KindUnauthed    Kind = "unauthorised"
	KindForbidden   Kind = "forbidden"
	KindTimeout     Kind = "timeout"
	KindUnreachable Kind = "unreachable"
	KindDecrypt     Kind = "decrypt"
	KindInternal    Kind = "internal"
)

// Error is a structured, kind-tagged error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a structured error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a structured error of the given kind, wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validationf builds a validation-kind error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds a not-found-kind error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Conflictf builds a conflict-kind error with a formatted message.
func Conflictf(format string, args ...any) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}

// KindOf extracts the Kind of err, defaulting to KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}
