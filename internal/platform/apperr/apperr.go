// Copyright (c) 2026 Veriface Labs. All rights reserved.

/*
Package apperr defines the centralized error handling framework for Veriface.

It provides a rich error type that bridges the gap between low-level Domain/Storage
errors and high-level HTTP responses.

Architecture:

  - AppError: A struct containing machine-readable ErrorCode and user-friendly messages.
  - Taxonomy: Every enrollment/verification failure mode has a distinct code.
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves the service layer should be wrapped as an [AppError] to ensure
consistent API responses. Verification failures additionally pass through
[Uniform] at the transport boundary so callers cannot distinguish failure modes.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// # Error Codes

// Machine-readable codes for the enrollment and verification taxonomy.
const (
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodePoorQuality        = "POOR_QUALITY"
	CodeIncompatibleModel  = "INCOMPATIBLE_MODEL"
	CodeRateLimited        = "RATE_LIMITED"
	CodeMalformedProbe     = "MALFORMED_PROBE"
	CodeReplayedProbe      = "REPLAYED_PROBE"
	CodeTimedOut           = "TIMED_OUT"
	CodeRejected           = "REJECTED"
	CodeVerificationFailed = "VERIFICATION_FAILED"
	CodeInconclusive       = "VERIFICATION_INCONCLUSIVE"
)

// AppError is the canonical error type for the Veriface API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries or
// similarity scores).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "QUOTA_EXCEEDED").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Template") // Returns "Template not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       "FORBIDDEN",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// # Enrollment Errors

// QuotaExceeded creates a 409 [AppError] when a user already holds the
// maximum number of active templates.
func QuotaExceeded(maxTemplates int) *AppError {
	return &AppError{
		Code:       CodeQuotaExceeded,
		Message:    fmt.Sprintf("Enrollment limit of %d templates reached", maxTemplates),
		HTTPStatus: http.StatusConflict,
	}
}

// PoorQuality creates a 422 [AppError] for a capture below the quality gate.
func PoorQuality() *AppError {
	return &AppError{
		Code:       CodePoorQuality,
		Message:    "Capture quality too low, please retry with better lighting",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// IncompatibleModel creates a 422 [AppError] for an embedding whose
// dimensionality or model version does not match the deployment.
func IncompatibleModel(cause error) *AppError {
	return &AppError{
		Code:       CodeIncompatibleModel,
		Message:    "Embedding is incompatible with this deployment",
		HTTPStatus: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// # Verification Errors
//
// These codes are internal. At the HTTP boundary they are collapsed through
// [Uniform] so the response payload and status are identical regardless of
// which failure mode occurred (anti-enumeration).

// RateLimited creates a 429 [AppError].
func RateLimited() *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    "Too many verification attempts",
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// MalformedProbe creates a 400 [AppError] for a probe with wrong
// dimensionality or model version.
func MalformedProbe(cause error) *AppError {
	return &AppError{
		Code:       CodeMalformedProbe,
		Message:    "Probe embedding is malformed",
		HTTPStatus: http.StatusBadRequest,
		Cause:      cause,
	}
}

// ReplayedProbe creates a 401 [AppError] for a probe nonce seen before.
func ReplayedProbe() *AppError {
	return &AppError{
		Code:       CodeReplayedProbe,
		Message:    "Probe has already been submitted",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TimedOut creates a 401 [AppError] for a scoring deadline miss.
func TimedOut(cause error) *AppError {
	return &AppError{
		Code:       CodeTimedOut,
		Message:    "Verification timed out",
		HTTPStatus: http.StatusUnauthorized,
		Cause:      cause,
	}
}

// Rejected creates a 401 [AppError] for the normal negative match outcome.
func Rejected() *AppError {
	return &AppError{
		Code:       CodeRejected,
		Message:    "Verification failed",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Inconclusive creates a 401 [AppError] for a score between the reject and
// accept thresholds. Unlike [Rejected], this code IS surfaced to the caller:
// it signals that a retry with a fresh capture is worthwhile.
func Inconclusive() *AppError {
	return &AppError{
		Code:       CodeInconclusive,
		Message:    "Verification inconclusive, retry with a fresh capture",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// VerificationFailed is the uniform outward-facing verification error.
// Payload and status are constant across all internal failure modes.
func VerificationFailed() *AppError {
	return &AppError{
		Code:       CodeVerificationFailed,
		Message:    "Verification failed",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Uniform collapses an internal verification error into the
// indistinguishable outward form. Inconclusive is preserved as-is (the retry
// path is deliberate API surface); every other verification failure maps to
// [VerificationFailed]. Non-verification errors pass through untouched.
func Uniform(err error) error {
	ae := As(err)
	if ae == nil {
		return err
	}
	switch ae.Code {
	case CodeInconclusive:
		return ae
	case CodeRejected, CodeRateLimited, CodeMalformedProbe, CodeReplayedProbe, CodeTimedOut:
		return VerificationFailed()
	default:
		return err
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ServiceUnavailable creates a 503 [AppError] for maintenance mode.
func ServiceUnavailable(msg string) *AppError {
	return &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err carries the given machine-readable code.
func HasCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
