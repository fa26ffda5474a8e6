package types

import (
	"errors"
	"net/http"
)

// ErrorKind classifies upstream and resolution failures.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindRateLimited         ErrorKind = "rate_limited"
	KindMisconfigured       ErrorKind = "misconfigured_provider"
	KindInvalidInput        ErrorKind = "invalid_input"
)

// APIError is the tagged error variant used throughout the resolvers. Status
// is the HTTP-style code propagated to the ultimate caller; Timeout marks
// transport timeouts so callers can treat them as "no result, try next"
// rather than hard failures.
type APIError struct {
	Kind    ErrorKind `json:"kind,omitempty"`
	Status  int       `json:"error_status"`
	Message string    `json:"error"`
	Timeout bool      `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewNotFound builds a 404-equivalent error.
func NewNotFound(message string) *APIError {
	return &APIError{Kind: KindNotFound, Status: http.StatusNotFound, Message: message}
}

// NewUpstream builds an upstream-unavailable error with the given status.
// A zero status defaults to 502, the generic transport failure code.
func NewUpstream(message string, status int) *APIError {
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &APIError{Kind: KindUpstreamUnavailable, Status: status, Message: message}
}

// NewTimeout builds an upstream-unavailable error flagged as a timeout.
func NewTimeout(message string) *APIError {
	return &APIError{
		Kind:    KindUpstreamUnavailable,
		Status:  http.StatusBadGateway,
		Message: message,
		Timeout: true,
	}
}

// NewRateLimited builds a rate-limit error with the provider-reported status.
func NewRateLimited(message string, status int) *APIError {
	if status == 0 {
		status = http.StatusTooManyRequests
	}
	return &APIError{Kind: KindRateLimited, Status: status, Message: message}
}

// NewMisconfigured builds the error for a required credential missing while
// the owning feature is enabled.
func NewMisconfigured(message string) *APIError {
	return &APIError{Kind: KindMisconfigured, Status: http.StatusInternalServerError, Message: message}
}

// NewInvalidInput builds a 400-equivalent error.
func NewInvalidInput(message string) *APIError {
	return &APIError{Kind: KindInvalidInput, Status: http.StatusBadRequest, Message: message}
}

// NewInternal builds a 500-equivalent error for defensive terminal failures.
func NewInternal(message string) *APIError {
	return &APIError{Kind: KindUpstreamUnavailable, Status: http.StatusInternalServerError, Message: message}
}

// AsAPIError extracts an APIError from err, wrapping anything else as a
// generic 502 upstream failure. Returns nil for a nil error.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewUpstream(err.Error(), http.StatusBadGateway)
}
