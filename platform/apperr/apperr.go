// Package apperr carries typed errors from services to the HTTP layer, which
// maps each Kind to a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindBadRequest
	KindInternal
	// KindUnprocessable: the request is well formed but cannot be served,
	// e.g. no agent covers the property.
	KindUnprocessable
	// KindUnavailable: a dependency (directory, search index) is down and the
	// caller may retry.
	KindUnavailable
)

var statusByKind = map[Kind]int{
	KindNotFound:      http.StatusNotFound,
	KindValidation:    http.StatusBadRequest,
	KindConflict:      http.StatusConflict,
	KindBadRequest:    http.StatusBadRequest,
	KindInternal:      http.StatusInternalServerError,
	KindUnprocessable: http.StatusUnprocessableEntity,
	KindUnavailable:   http.StatusServiceUnavailable,
}

// Error is a domain error. Message and Details are safe to return to clients;
// Err is kept for logs only.
type Error struct {
	Kind    Kind
	Message string
	Op      string
	Err     error
	Details interface{}
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the Kind to a response code. Unknown kinds are 500.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the client may repeat the request unchanged.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable
}

func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
