package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAPIError_UnwrapsToSentinel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnprocessableEntity, ErrBadRequest},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, c := range cases {
		err := fmt.Errorf("wrapped: %w", &APIError{StatusCode: c.code})
		if !errors.Is(err, c.want) {
			t.Fatalf("status %d: want %v in chain, got %v", c.code, c.want, err)
		}
	}

	if errors.Unwrap(&APIError{StatusCode: http.StatusInternalServerError}) != nil {
		t.Fatalf("5xx must not map to a sentinel")
	}
}

func TestAPIError_MessageFallback(t *testing.T) {
	t.Parallel()

	e := &APIError{StatusCode: http.StatusConflict}
	if !strings.Contains(e.Error(), "Conflict") {
		t.Fatalf("want status text fallback, got %q", e.Error())
	}
	e.Message = "booking already resolved"
	if !strings.Contains(e.Error(), "booking already resolved") {
		t.Fatalf("want backend message verbatim, got %q", e.Error())
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	var v *ValidationError
	if v.HasErrors() {
		t.Fatalf("nil must report no errors")
	}

	v = NewValidationError("name", "required")
	v.Add("email", "required")
	if !v.HasErrors() {
		t.Fatalf("want errors")
	}
	if !errors.Is(v, ErrValidation) {
		t.Fatalf("ValidationError must unwrap to ErrValidation")
	}
	if got := v.Error(); got != "validation failed: email: required; name: required" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestKind(t *testing.T) {
	t.Parallel()

	if Kind(nil) != "" {
		t.Fatalf("nil kind must be empty")
	}
	expired := fmt.Errorf("%w: %w", ErrSessionExpired, &APIError{StatusCode: http.StatusUnauthorized})
	if Kind(expired) != "session_expired" {
		t.Fatalf("session expiry must win over unauthorized, got %s", Kind(expired))
	}
	if Kind(&APIError{StatusCode: http.StatusConflict}) != "conflict" {
		t.Fatalf("409 must be conflict")
	}
	if Kind(NewValidationError("x", "y")) != "validation" {
		t.Fatalf("validation kind")
	}
	if Kind(context.Canceled) != "unexpected" {
		t.Fatalf("unknown errors are unexpected")
	}
}
