package ckan

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrUnsuccessful is returned when the action API answers with a 2xx
// status but success=false in the envelope.
var ErrUnsuccessful = errors.New("CKAN API returned success=false")

// APIError is a non-2xx answer from the action API.
type APIError struct {
	Action  string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error (%d): %s", e.Action, e.Status, e.Message)
}

// TimeoutError reports that the server did not answer within the per-call
// timeout.
type TimeoutError struct {
	Server string
}

func (e *TimeoutError) Error() string {
	return "request timeout connecting to " + e.Server
}

// ServerNotFoundError reports that the server host could not be resolved.
type ServerNotFoundError struct {
	Server string
}

func (e *ServerNotFoundError) Error() string {
	return "server not found: " + e.Server
}

// NetworkError wraps any other transport failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ClassifyTransportError maps an error returned by http.Client.Do to one of
// TimeoutError, ServerNotFoundError or NetworkError. Cancellation by the
// caller is returned unchanged.
func ClassifyTransportError(server string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Server: server}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Server: server}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ServerNotFoundError{Server: server}
	}

	return &NetworkError{Err: err}
}

// outcome labels an error for the upstream request metric.
func outcome(err error) string {
	var (
		apiErr      *APIError
		timeoutErr  *TimeoutError
		notFoundErr *ServerNotFoundError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.Is(err, ErrUnsuccessful):
		return "unsuccessful"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &notFoundErr):
		return "not_found"
	default:
		return "network_error"
	}
}
