package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jwalitptl/detailing-api/pkg/circuitbreaker"
)

var (
	ErrEmptyPrompt     = errors.New("prompt is required")
	ErrEmptyRole       = errors.New("role is required")
	ErrNoAssignment    = errors.New("No API assigned for role")
	ErrUnknownBackend  = errors.New("unknown backend")
	ErrBackendDisabled = errors.New("backend is disabled and no usable fallback is configured")
	ErrEmptyCompletion = errors.New("backend returned no content")
)

// StatusError is a non-2xx answer from a backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// UpstreamError is a failed call to one backend.
type UpstreamError struct {
	BackendID string
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("backend %s failed: %v", e.BackendID, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// FallbackError reports that both the assigned backend and the fallback failed.
type FallbackError struct {
	Primary  *UpstreamError
	Fallback *UpstreamError
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("backend %s failed (%v); fallback %s failed (%v)",
		e.Primary.BackendID, e.Primary.Err, e.Fallback.BackendID, e.Fallback.Err)
}

func (e *FallbackError) Unwrap() []error { return []error{e.Primary, e.Fallback} }

// HTTPStatus returns the upstream HTTP status carried by err, 503 for an open
// breaker, 504 for a timeout, and 0 when no response was received.
func HTTPStatus(err error) int {
	var fb *FallbackError
	if errors.As(err, &fb) {
		err = fb.Fallback
	}
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return se.StatusCode
	case errors.Is(err, circuitbreaker.ErrOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return 0
}

// IsUpstream reports whether err came from calling a backend rather than
// from resolving the request.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
