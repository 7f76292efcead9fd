// Package errors provides the unified AppError taxonomy used across
// PulseArc's capture, classification and storage layers.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies the broad category of an AppError, mirroring the
// sub-variants a caller needs to branch on (retry vs. surface vs. ignore).
type Kind string

const (
	KindAI         Kind = "ai"
	KindHTTP       Kind = "http"
	KindMetrics    Kind = "metrics"
	KindValidation Kind = "validation"
	KindIO         Kind = "io"
	KindAuth       Kind = "auth"
	KindDatabase   Kind = "database"
	KindNotFound   Kind = "not_found"
	KindOther      Kind = "other"
)

// Severity ranks how urgently an error should be surfaced to a human.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// AppError is PulseArc's structured error type. It carries enough metadata
// for callers to decide whether to retry, how to log, and what to show the
// user, without needing a type switch on the wrapped cause.
type AppError struct {
	Kind       Kind
	Code       string
	Message    string
	Severity   Severity
	Retryable  bool
	Critical   bool
	ActionHint string
	RetryAfter time.Duration
	LogFields  map[string]interface{}
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithField attaches a structured log field and returns the receiver for
// chaining.
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.LogFields == nil {
		e.LogFields = make(map[string]interface{})
	}
	e.LogFields[key] = value
	return e
}

func newErr(kind Kind, code, message string, severity Severity, retryable bool) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Severity: severity, Retryable: retryable}
}

func wrapErr(kind Kind, code, message string, severity Severity, retryable bool, err error) *AppError {
	e := newErr(kind, code, message, severity, retryable)
	e.Err = err
	return e
}

// AI classifier errors, mapped from LLM HTTP responses.
//
//	401/403 -> Authentication
//	429     -> RateLimit
//	other non-2xx -> Api
//	malformed JSON -> InvalidSchema

func AIAuthentication(err error) *AppError {
	return wrapErr(KindAI, "AI_AUTH", "LLM provider rejected credentials", SeverityCritical, false, err).
		WithField("action_hint", "reauthenticate")
}

func AIRateLimit(retryAfter time.Duration, err error) *AppError {
	e := wrapErr(KindAI, "AI_RATE_LIMIT", "LLM provider rate-limited the request", SeverityWarning, true, err)
	e.RetryAfter = retryAfter
	return e
}

func AIAPIError(status int, err error) *AppError {
	return wrapErr(KindAI, "AI_API", fmt.Sprintf("LLM API returned status %d", status), SeverityError, true, err).
		WithField("status", status)
}

func AIInvalidSchema(err error) *AppError {
	return wrapErr(KindAI, "AI_SCHEMA", "LLM response did not match the expected JSON schema", SeverityError, false, err)
}

// HTTP / network errors.

func HTTPTimeout(operation string, err error) *AppError {
	return wrapErr(KindHTTP, "HTTP_TIMEOUT", "operation timed out", SeverityWarning, true, err).
		WithField("operation", operation)
}

func HTTPStatus(status int, operation string) *AppError {
	retryable := status >= 500 || status == 429
	return newErr(KindHTTP, "HTTP_STATUS", fmt.Sprintf("unexpected HTTP status %d", status), SeverityError, retryable).
		WithField("operation", operation).
		WithField("status", status)
}

// Metrics / observability errors (never critical; the agent keeps running
// even if the metrics exporter is unreachable).

func MetricsExportFailed(err error) *AppError {
	return wrapErr(KindMetrics, "METRICS_EXPORT", "failed to export metrics", SeverityWarning, true, err)
}

// Validation errors.

func InvalidInput(field, reason string) *AppError {
	return newErr(KindValidation, "VAL_INVALID", "invalid input", SeverityWarning, false).
		WithField("field", field).
		WithField("reason", reason)
}

func MissingParameter(param string) *AppError {
	return newErr(KindValidation, "VAL_MISSING", "missing required parameter", SeverityWarning, false).
		WithField("parameter", param)
}

// IO / storage errors.

func IOFailed(operation string, err error) *AppError {
	return wrapErr(KindIO, "IO_FAILED", "I/O operation failed", SeverityError, true, err).
		WithField("operation", operation)
}

func DatabaseError(operation string, err error) *AppError {
	return wrapErr(KindDatabase, "DB_FAILED", "database operation failed", SeverityError, true, err).
		WithField("operation", operation)
}

func NotFound(resource, id string) *AppError {
	return newErr(KindNotFound, "NOT_FOUND", "resource not found", SeverityInfo, false).
		WithField("resource", resource).
		WithField("id", id)
}

// Auth / keychain errors.

func AuthTokenExpired() *AppError {
	return newErr(KindAuth, "AUTH_EXPIRED", "token expired", SeverityWarning, true)
}

func AuthKeychainUnavailable(err error) *AppError {
	return wrapErr(KindAuth, "AUTH_KEYCHAIN", "OS keychain is unavailable", SeverityCritical, false, err)
}

// Internal / catch-all errors.

func Internal(message string, err error) *AppError {
	return wrapErr(KindOther, "INTERNAL", message, SeverityError, false, err)
}

// Helper functions.

// As extracts an *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// IsRetryable reports whether err (or any AppError in its chain) is marked
// retryable.
func IsRetryable(err error) bool {
	if appErr, ok := As(err); ok {
		return appErr.Retryable
	}
	return false
}

// IsCritical reports whether err (or any AppError in its chain) is marked
// critical.
func IsCritical(err error) bool {
	if appErr, ok := As(err); ok {
		return appErr.Critical
	}
	return false
}
