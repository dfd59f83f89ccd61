// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Generic codes mirror HTTP status semantics; the few
// domain codes name failures status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodeRateLimited     = "too_many_requests"
	ErrCodeInternal        = "internal_error"
	ErrCodePayloadTooLarge = "payload_too_large"

	// Domain-specific:
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstream           = "upstream_error"
	ErrCodeNotReady           = "not_ready"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
)
