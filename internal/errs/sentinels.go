// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Common sentinels across client layers.
var (
	// ErrNotFound indicates the requested entity or key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the backend refused a state transition (e.g. booking already resolved).
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized indicates the backend rejected the request credentials (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller is authenticated but not allowed (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrBadRequest indicates the backend rejected the request payload (HTTP 400/422).
	ErrBadRequest = errors.New("bad request")

	// ErrAuth indicates login or registration was rejected by the backend.
	ErrAuth = errors.New("authentication failed")

	// ErrSessionExpired indicates the refresh flow failed and the session was cleared.
	ErrSessionExpired = errors.New("session expired")

	// ErrNetwork indicates a transport-level failure before a response was received.
	ErrNetwork = errors.New("network error")

	// ErrTimeout indicates the per-request deadline elapsed.
	ErrTimeout = errors.New("timeout")

	// ErrValidation indicates client-side validation failed; the request never left the process.
	ErrValidation = errors.New("validation failed")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrBusy indicates an operation is already in flight.
	ErrBusy = errors.New("operation in progress")

	// ErrCacheInvalidation indicates a mutation succeeded but its cache entries could not be dropped.
	ErrCacheInvalidation = errors.New("cache invalidation failed")
)

// APIError is a non-2xx response decoded from the backend.
type APIError struct {
	StatusCode int                 `json:"statusCode"`
	Message    string              `json:"message"`
	Errors     map[string][]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("api %d: %s", e.StatusCode, msg)
}

// Unwrap maps the status code to a sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrBadRequest
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// ValidationError captures field level issues found before any network call.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError with a single field message.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Add records a field level validation error.
func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	v.Fields[field] = message
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.Fields) == 0 {
		return ErrValidation.Error()
	}
	names := make([]string, 0, len(v.Fields))
	for f := range v.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, f+": "+v.Fields[f])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (v *ValidationError) Unwrap() error { return ErrValidation }

// Kind maps an error to a stable label for logs and CLI output.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrCacheInvalidation):
		return "cache"
	}
	return "unexpected"
}
