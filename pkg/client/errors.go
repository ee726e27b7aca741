package client

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	// ErrNetwork covers transport failures and non-success answers.
	ErrNetwork = errors.New("network failure")
	// ErrUnauthorized is returned when the backend has no logged-in session.
	// It always matches ErrNetwork too.
	ErrUnauthorized = errors.New("not logged in")
	// ErrMalformedPayload is returned when a response does not have the expected shape.
	ErrMalformedPayload = errors.New("malformed payload")
)

// RequestError wraps a transport-level failure.
type RequestError struct {
	Method string
	Path   string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *RequestError) Unwrap() []error {
	return []error{ErrNetwork, e.Err}
}

// APIError is a response the backend answered with an error status or with
// success=false.
type APIError struct {
	StatusCode int
	Message    string

	unauthorized bool
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("backend error (%d): %s", e.StatusCode, msg)
}

func (e *APIError) Unwrap() []error {
	if e.unauthorized {
		return []error{ErrUnauthorized, ErrNetwork}
	}
	return []error{ErrNetwork}
}

func malformed(method, path string, format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedPayload, "%s %s: %s", method, path, fmt.Sprintf(format, args...))
}
