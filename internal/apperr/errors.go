// Package apperr defines the error taxonomy shared by the store, the proxy
// core and the Discord adapter.
package apperr

import "errors"

// Code is a machine-readable error code.
type Code string

const (
	CodeNotFound     Code = "NOT_FOUND"
	CodeNotOwner     Code = "NOT_OWNER"
	CodeTimeout      Code = "INTERACTION_TIMEOUT"
	CodeDelivery     Code = "DELIVERY_FAILED"
	CodeInvalidInput Code = "INVALID_INPUT"
)

// Error carries a Code and a message safe to show to users.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error with the same code, so wrapped sentinels compare
// equal to fresh errors built with New.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New returns an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrNotFound     = New(CodeNotFound, "not found")
	ErrNotOwner     = New(CodeNotOwner, "you do not own this character")
	ErrTimeout      = New(CodeTimeout, "timed out")
	ErrDelivery     = New(CodeDelivery, "message could not be delivered")
	ErrInvalidInput = New(CodeInvalidInput, "invalid input")
)

// CodeOf returns the code of the first *Error in err's chain, or "" when
// err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
