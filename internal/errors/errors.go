// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested record was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates the client sent a malformed request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrUpstreamNotConfigured indicates no ERP backend base URL is set.
	ErrUpstreamNotConfigured = errors.New("upstream not configured")

	// ErrUnsupportedLocale indicates a locale code outside en, ar and no.
	ErrUnsupportedLocale = errors.New("unsupported locale")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err is or wraps ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsTimeout reports whether err is or wraps ErrTimeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsUpstreamNotConfigured reports whether err is or wraps ErrUpstreamNotConfigured.
func IsUpstreamNotConfigured(err error) bool { return errors.Is(err, ErrUpstreamNotConfigured) }

// IsUnsupportedLocale reports whether err is or wraps ErrUnsupportedLocale.
func IsUnsupportedLocale(err error) bool { return errors.Is(err, ErrUnsupportedLocale) }

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
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

// UpstreamError represents a failed call to the ERP backend.
// StatusCode is zero for transport failures.
type UpstreamError struct {
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (url=%s, status=%d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream error (url=%s): %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates a new upstream error.
func NewUpstreamError(url string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// AsUpstreamError extracts an *UpstreamError from the chain.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
