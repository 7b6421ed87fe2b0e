package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrConflict indicates a lease mismatch, a unique-key collision, or a
	// resubmission against an entity already in a terminal state.
	ErrConflict = errors.New("conflict")

	// ErrRateLimited indicates the coordinator or an upstream provider tripped
	// a rate limit.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderTransient indicates a retryable upstream model or vector-store
	// error (timeout, connection reset, 5xx, rate-limit from the provider side).
	ErrProviderTransient = errors.New("provider transient error")

	// ErrProviderFatal indicates a non-retryable upstream error: bad
	// credentials, content filtering, or an unknown model.
	ErrProviderFatal = errors.New("provider fatal error")
)

// Kind classifies an error into one of the coordinator's error kinds, used to
// pick an HTTP status and to decide whether a caller should retry.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindRateLimited       Kind = "rate_limited"
	KindProviderTransient Kind = "provider_transient"
	KindProviderFatal     Kind = "provider_fatal"
	KindInternal          Kind = "internal"
)

// ClassifyKind maps a domain error to its coordinator-facing Kind. Unknown
// errors are classified as internal.
func ClassifyKind(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrProviderTransient):
		return KindProviderTransient
	case errors.Is(err, ErrProviderFatal):
		return KindProviderFatal
	case errors.Is(err, ErrValidationFailed), errors.Is(err, ErrInvalidInput):
		return KindValidation
	default:
		var ve *ValidationError
		if errors.As(err, &ve) {
			return KindValidation
		}
		return KindInternal
	}
}

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
