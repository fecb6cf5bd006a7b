package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so controllers can map it to an HTTP status and
// clients can tell a denied quota from an expired session.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindInvalidState   Kind = "invalid_state"
	KindSessionExpired Kind = "session_expired"
	KindQuotaExceeded  Kind = "quota_exceeded"
	KindGatewayFailure Kind = "gateway_failure"
	KindConflict       Kind = "storage_conflict"
	KindNotFound       Kind = "not_found"
)

// Error is the typed error returned by services for expected failures.
// Programming bugs and storage faults keep flowing as plain wrapped errors.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, or empty if err is not an apperr.Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
