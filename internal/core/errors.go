package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the loan operations.
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "invalid_input"
	KindLoanNotFound      ErrorKind = "loan_not_found"
	KindInvalidDateFormat ErrorKind = "invalid_date_format"
	KindFutureDate        ErrorKind = "future_date"
	KindUnexpected        ErrorKind = "unexpected"
)

// Sentinels for errors.Is. A *Error matches the sentinel of its kind.
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrLoanNotFound      = &Error{Kind: KindLoanNotFound, Message: "loan not found"}
	ErrInvalidDateFormat = &Error{Kind: KindInvalidDateFormat, Message: "invalid date format, expected YYYY-MM-DD"}
	ErrFutureDate        = &Error{Kind: KindFutureDate, Message: "payment date cannot be in the future"}
	ErrUnexpected        = &Error{Kind: KindUnexpected, Message: "unexpected error"}
)

// Error is the tagged failure returned by the loan service.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Unexpected wraps err as an unexpected failure.
func Unexpected(msg string, err error) *Error {
	return &Error{Kind: KindUnexpected, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindUnexpected for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}
