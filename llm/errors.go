package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// FailureKind classifies an LLM request failure.
// The agent loop branches on the kind explicitly; the original provider
// detail string travels alongside for operator diagnosis.
type FailureKind string

const (
	// FailureRateLimited indicates the provider rejected the call for rate limiting.
	FailureRateLimited FailureKind = "rate_limited"

	// FailureAuthInvalid indicates the API key was rejected.
	FailureAuthInvalid FailureKind = "auth_invalid"

	// FailureModelNotFound indicates the requested model does not exist.
	FailureModelNotFound FailureKind = "model_not_found"

	// FailureContextExceeded indicates the prompt exceeded the context window.
	FailureContextExceeded FailureKind = "context_length_exceeded"

	// FailureContentPolicy indicates the provider refused for policy reasons.
	FailureContentPolicy FailureKind = "content_policy"

	// FailureServiceUnavailable indicates a 5xx or overloaded provider.
	FailureServiceUnavailable FailureKind = "service_unavailable"

	// FailureTimeout indicates the request exceeded its deadline.
	FailureTimeout FailureKind = "timeout"

	// FailureBadRequest indicates the request was malformed.
	FailureBadRequest FailureKind = "bad_request"

	// FailureConnection indicates a transport-level failure.
	FailureConnection FailureKind = "connection"

	// FailureOther covers failures not matching any other kind.
	FailureOther FailureKind = "other"
)

// String returns the string representation of the failure kind.
func (k FailureKind) String() string {
	return string(k)
}

// IsValid checks if the failure kind is a recognized value.
func (k FailureKind) IsValid() bool {
	switch k {
	case FailureRateLimited, FailureAuthInvalid, FailureModelNotFound,
		FailureContextExceeded, FailureContentPolicy, FailureServiceUnavailable,
		FailureTimeout, FailureBadRequest, FailureConnection, FailureOther:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a failure of this kind may succeed on retry.
func (k FailureKind) IsRetryable() bool {
	switch k {
	case FailureRateLimited, FailureServiceUnavailable, FailureTimeout, FailureConnection:
		return true
	default:
		return false
	}
}

// RequestError is the typed error returned for every failed completion call.
type RequestError struct {
	// Kind classifies the failure.
	Kind FailureKind

	// Detail is the original provider or transport error string.
	Detail string

	// StatusCode is the HTTP status, if the failure came from a response.
	StatusCode int

	// Cause is the underlying transport error, if any.
	Cause error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("llm request failed: %s", e.Kind)
	}
	return fmt.Sprintf("llm request failed: %s: %s", e.Kind, e.Detail)
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	return e.Cause
}

// AsRequestError extracts a *RequestError from err.
// Returns nil if err does not wrap one.
func AsRequestError(err error) *RequestError {
	var re *RequestError
	if errors.As(err, &re) {
		return re
	}
	return nil
}

// ClassifyStatus maps an HTTP status code and response body to a FailureKind.
func ClassifyStatus(status int, body string) FailureKind {
	switch status {
	case http.StatusTooManyRequests:
		return FailureRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailureAuthInvalid
	case http.StatusNotFound:
		return FailureModelNotFound
	case http.StatusRequestTimeout:
		return FailureTimeout
	case http.StatusBadRequest:
		lower := strings.ToLower(body)
		if strings.Contains(lower, "context length") || strings.Contains(lower, "context_length") ||
			strings.Contains(lower, "maximum context") || strings.Contains(lower, "too many tokens") {
			return FailureContextExceeded
		}
		if strings.Contains(lower, "content policy") || strings.Contains(lower, "content_policy") ||
			strings.Contains(lower, "content management policy") {
			return FailureContentPolicy
		}
		return FailureBadRequest
	}
	if status >= 500 {
		return FailureServiceUnavailable
	}
	return FailureOther
}

// ClassifyTransport maps a transport-level error to a FailureKind.
func ClassifyTransport(err error) FailureKind {
	if err == nil {
		return FailureOther
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return FailureTimeout
		}
		return FailureConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureConnection
	}
	return FailureOther
}

// NewRequestError builds a RequestError from a failure kind and detail.
func NewRequestError(kind FailureKind, detail string) *RequestError {
	return &RequestError{Kind: kind, Detail: detail}
}
