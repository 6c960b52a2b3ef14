// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrServiceUnavailable indicates the course matching API could not be reached.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates a client sent too many actions.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyVoted indicates a card already carries a (pending or final) vote.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
)

// Kind groups failures by the message a user should see.
type Kind int

const (
	// KindGeneric is any failure that is not a reachability problem.
	KindGeneric Kind = iota
	// KindUnavailable means the remote service could not be reached at all.
	KindUnavailable
)

// String returns the metric label of the kind.
func (k Kind) String() string {
	if k == KindUnavailable {
		return "unavailable"
	}
	return "error"
}

// APIError represents a failed call to the course matching API.
type APIError struct {
	Op         string // match_code, match_text, list_courses, feedback
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api error (op=%s, url=%s, status=%d): %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("api error (op=%s, url=%s): %v", e.Op, e.URL, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new API error.
func NewAPIError(op, url string, statusCode int, err error) *APIError {
	return &APIError{
		Op:         op,
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Classify decides which user-facing message a failure deserves.
//
// Unreachable transport (refused or reset connections, DNS failures, timeouts
// without a response) and gateway statuses 502/503/504 are KindUnavailable.
// Everything else, including non-success statuses and malformed bodies, is
// KindGeneric.
func Classify(err error) Kind {
	if err == nil {
		return KindGeneric
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return KindUnavailable
	}
	if errors.Is(err, context.Canceled) {
		return KindGeneric
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return KindUnavailable
		}
		if apiErr.StatusCode > 0 {
			return KindGeneric
		}
	}

	if IsNetworkError(err) {
		return KindUnavailable
	}
	return KindGeneric
}

// IsNetworkError reports whether err happened before any response arrived.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRateLimitExceeded checks if err is ErrRateLimitExceeded.
func IsRateLimitExceeded(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

// IsInvalidInput checks if err is ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
