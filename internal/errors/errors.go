package errors

import (
	"errors"
	"fmt"
)

// This package defines a centralized set of sentinel errors for the relay and the
// chat client. Services return these (wrapped with context) and the API layer
// uses `errors.Is()` / `errors.As()` to map them to HTTP responses.

var (
	// ErrNotFound signifies that a requested resource could not be located.
	// This is typically mapped to a 404 Not Found HTTP status.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that input data provided by a client failed
	// validation.
	// This is typically mapped to a 400 Bad Request HTTP status.
	ErrValidation = errors.New("validation failed")

	// ErrInternal signifies an unexpected error on the server. This is a generic
	// error used to prevent leaking sensitive implementation details to the client.
	// This is typically mapped to a 500 Internal Server Error HTTP status.
	ErrInternal = errors.New("internal server error")

	// ErrConfiguration signifies that the server is missing required configuration,
	// most importantly the upstream API credential. It is fatal for the request
	// and never retried.
	// This is mapped to a 500 Internal Server Error HTTP status.
	ErrConfiguration = errors.New("upstream credential not configured")

	// ErrUpstream is the sentinel every UpstreamError unwraps to.
	ErrUpstream = errors.New("upstream completion API failed")

	// ErrCancelled signifies that the caller abandoned the request. It is not a
	// failure and must not be logged as one.
	// This is mapped to the non-standard 499 Client Closed Request status.
	ErrCancelled = errors.New("request cancelled")

	// ErrRateLimited signifies that a client exceeded its request budget.
	// This is mapped to a 429 Too Many Requests HTTP status.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// UpstreamError carries a non-2xx answer from the upstream completion API.
// Status is the original upstream status code and Details the decoded error
// body (a JSON value when the body parsed, the raw text otherwise).
type UpstreamError struct {
	Status  int
	Details any
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %v", e.Status, e.Details)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}
