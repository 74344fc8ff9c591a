package types

import (
	"fmt"
	"net/http"
)

// ErrorKind identifies one of the error taxonomy kinds used across the
// enrichment service. Projection to an HTTP status happens once, at the
// boundary, via the (*Error).HTTPStatus method.
type ErrorKind string

const (
	KindValidation       ErrorKind = "VALIDATION"
	KindAuthRejected     ErrorKind = "AUTH_REJECTED"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindUpstreamFailure  ErrorKind = "UPSTREAM_FAILURE"
	KindDatastoreFailure ErrorKind = "DATASTORE_FAILURE"
	KindRateLimited      ErrorKind = "RATE_LIMITED"
	KindPayloadTooLarge  ErrorKind = "PAYLOAD_TOO_LARGE"
	KindInternal         ErrorKind = "INTERNAL"
)

// Error is the sum-type error carried through the service. Context is a
// stack of short descriptions attached at each raising/wrapping site so
// logs can reconstruct the full path while the HTTP projection exposes
// only Message.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
	Context    []string  `json:"-"`
	CircuitOpen bool     `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	for i := len(e.Context) - 1; i >= 0; i-- {
		msg = e.Context[i] + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind.
func New(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches context to err without discarding its kind, if err is
// already an *Error; otherwise it creates an Internal error wrapping err.
func Wrap(err error, context string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if asErr, ok := err.(*Error); ok {
		clone := *asErr
		clone.Context = append(append([]string{}, asErr.Context...), context)
		e = &clone
	} else {
		e = &Error{Kind: KindInternal, Message: "internal error", Cause: err, Context: []string{context}}
	}
	return e
}

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

func (e *Error) WithCircuitOpen() *Error {
	e.CircuitOpen = true
	return e
}

// IsRetryable reports whether err, if a *Error, is marked retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// KindOf extracts the ErrorKind from err, defaulting to KindInternal.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus projects an error kind onto its HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthRejected:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamFailure:
		return http.StatusBadGateway
	case KindDatastoreFailure:
		if e.CircuitOpen {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
