package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrClientGone marks a destination call abandoned because the client
// disconnected first.
var ErrClientGone = errors.New("client went away")

// ProxyError is the only failure type produced by the request pipeline.
// It carries everything needed to render an error response: the status, a
// message safe to show the caller, and the request Origin (empty when it was
// not known yet) so the response can still carry CORS headers.
type ProxyError struct {
	Status  int
	Message string
	Origin  string

	// Err is the underlying cause. For internal errors it is logged and
	// never shown to the caller.
	Err error

	internal bool
}

// Validation returns a 400 error.
func Validation(message, origin string) *ProxyError {
	return &ProxyError{Status: http.StatusBadRequest, Message: message, Origin: origin}
}

// Unauthorized returns a 401 error.
func Unauthorized(message, origin string) *ProxyError {
	return &ProxyError{Status: http.StatusUnauthorized, Message: message, Origin: origin}
}

// Upstream returns a 500 error for a failure to reach the destination.
// The transport error text is part of the message.
func Upstream(err error, origin string) *ProxyError {
	return &ProxyError{
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf("oops, couldn't connect to destination :(\n%s", err),
		Origin:  origin,
		Err:     err,
	}
}

// Internal wraps an unclassified failure. The message is generic and no
// Origin is attached.
func Internal(err error) *ProxyError {
	return &ProxyError{
		Status:   http.StatusInternalServerError,
		Message:  "something bad happened. check the logs",
		Err:      err,
		internal: true,
	}
}

// WithStatus returns an error with an explicit status, used for failures
// raised by the HTTP host layer (body limit, unknown method).
func WithStatus(status int, message, origin string) *ProxyError {
	return &ProxyError{Status: status, Message: message, Origin: origin}
}

// IsInternal reports whether e is an unclassified failure.
func (e *ProxyError) IsInternal() bool {
	return e.internal
}

func (e *ProxyError) Error() string {
	if e.Err != nil && e.internal {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}
