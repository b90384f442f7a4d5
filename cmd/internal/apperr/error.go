// Package apperr carries classified request failures and formats them.
//
// Handlers classify failures into *Error values and hand them to a Responder;
// they never write error bodies themselves.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	v1 "closet/shared/contracts/auth/v1"
)

// Error is a classified request failure.
// Operational errors are expected and safe to describe to the caller.
type Error struct {
	StatusCode  int
	Code        string
	Message     string
	Operational bool

	// Err is the underlying cause, if any. It is never shown in production.
	Err error
	// Stack is captured for non-operational errors only.
	Stack []byte
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s: %s: %v", e.StatusCode, e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the envelope status: "fail" for 4xx, "error" otherwise.
func (e *Error) Status() string {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return v1.StatusFail
	}
	return v1.StatusError
}

// New returns an operational error.
func New(status int, code, msg string) *Error {
	return &Error{StatusCode: status, Code: code, Message: msg, Operational: true}
}

// Wrap returns an operational error that keeps err as its cause.
func Wrap(err error, status int, code, msg string) *Error {
	return &Error{StatusCode: status, Code: code, Message: msg, Operational: true, Err: err}
}

// Internal marks err as an unexpected fault. A stack is captured at the call site.
func Internal(err error) *Error {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       v1.CodeInternal,
		Message:    err.Error(),
		Err:        err,
		Stack:      debug.Stack(),
	}
}

// Unauthorized is shorthand for a 401 operational error.
func Unauthorized(code, msg string) *Error {
	return New(http.StatusUnauthorized, code, msg)
}

// BadRequest is shorthand for a 400 operational error.
func BadRequest(code, msg string) *Error {
	return New(http.StatusBadRequest, code, msg)
}

// NotFound is shorthand for a 404 operational error.
func NotFound(msg string) *Error {
	return New(http.StatusNotFound, v1.CodeNotFound, msg)
}

// From classifies any error. Unclassified errors become Internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// IsOperational reports whether err is a classified, expected failure.
func IsOperational(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Operational
}
