// Package services holds the application logic of the scan pipeline: job
// submission to the analysis engine, job tracking, the completion pipeline
// and the record store. This file centralizes service-level errors so that
// handlers can translate them into HTTP results in one place.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad client input. *ValidationError matches it via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrServiceUnavailable is returned when the analysis engine cannot be
	// reached (connection refused, DNS failure, timeout).
	ErrServiceUnavailable = errors.New("analysis engine unavailable")

	// ErrNotFound indicates that the requested record or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a create collides with an existing id.
	ErrConflict = errors.New("conflict")
)

// ValidationError describes which input was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any *ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// UpstreamError carries a non-2xx answer from the analysis engine so that
// its status and message reach the client unchanged.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("analysis engine returned %d: %s", e.StatusCode, e.Message)
}
