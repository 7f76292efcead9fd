package errors

import (
	"errors"
	"testing"
	"time"
)

func TestAppError_Error(t *testing.T) {
	withoutCause := AIAuthentication(nil)
	if got, want := withoutCause.Error(), "[ai:AI_AUTH] LLM provider rejected credentials"; got != want {
		t.Errorf("Error() = %v, want %v", got, want)
	}

	cause := errors.New("connection reset")
	withCause := Internal("boom", cause)
	if got, want := withCause.Error(), "[other:INTERNAL] boom: connection reset"; got != want {
		t.Errorf("Error() = %v, want %v", got, want)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Internal("test", underlying)

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
}

func TestAppError_WithField(t *testing.T) {
	err := InvalidInput("email", "not set")
	err.WithField("extra", "value")

	if err.LogFields["field"] != "email" {
		t.Errorf("LogFields[field] = %v, want email", err.LogFields["field"])
	}
	if err.LogFields["reason"] != "not set" {
		t.Errorf("LogFields[reason] = %v, want 'not set'", err.LogFields["reason"])
	}
	if err.LogFields["extra"] != "value" {
		t.Errorf("LogFields[extra] = %v, want value", err.LogFields["extra"])
	}
}

func TestAIAuthentication(t *testing.T) {
	err := AIAuthentication(errors.New("401"))

	if err.Kind != KindAI {
		t.Errorf("Kind = %v, want %v", err.Kind, KindAI)
	}
	if err.Retryable {
		t.Error("AIAuthentication should not be retryable")
	}
	if err.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want %v", err.Severity, SeverityCritical)
	}
}

func TestAIRateLimit(t *testing.T) {
	err := AIRateLimit(30*time.Second, errors.New("429"))

	if !err.Retryable {
		t.Error("AIRateLimit should be retryable")
	}
	if err.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", err.RetryAfter)
	}
}

func TestAIAPIError(t *testing.T) {
	err := AIAPIError(500, errors.New("server error"))

	if err.LogFields["status"] != 500 {
		t.Errorf("LogFields[status] = %v, want 500", err.LogFields["status"])
	}
	if !err.Retryable {
		t.Error("AIAPIError should be retryable")
	}
}

func TestAIInvalidSchema(t *testing.T) {
	err := AIInvalidSchema(errors.New("bad json"))

	if err.Retryable {
		t.Error("AIInvalidSchema should not be retryable")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		status        int
		wantRetryable bool
	}{
		{500, true},
		{429, true},
		{400, false},
		{404, false},
	}
	for _, tt := range tests {
		err := HTTPStatus(tt.status, "fetch")
		if err.Retryable != tt.wantRetryable {
			t.Errorf("HTTPStatus(%d).Retryable = %v, want %v", tt.status, err.Retryable, tt.wantRetryable)
		}
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("wbs_element", "123")

	if err.Kind != KindNotFound {
		t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
	}
	if err.LogFields["resource"] != "wbs_element" {
		t.Errorf("LogFields[resource] = %v, want wbs_element", err.LogFields["resource"])
	}
}

func TestDatabaseError(t *testing.T) {
	underlying := errors.New("connection timeout")
	err := DatabaseError("insert", underlying)

	if err.Kind != KindDatabase {
		t.Errorf("Kind = %v, want %v", err.Kind, KindDatabase)
	}
	if err.LogFields["operation"] != "insert" {
		t.Errorf("LogFields[operation] = %v, want insert", err.LogFields["operation"])
	}
}

func TestAsAndIsRetryable(t *testing.T) {
	retryable := AIRateLimit(time.Second, nil)
	notRetryable := AIAuthentication(nil)
	plain := errors.New("plain")

	if !IsRetryable(retryable) {
		t.Error("expected retryable error to report retryable")
	}
	if IsRetryable(notRetryable) {
		t.Error("expected non-retryable error to report non-retryable")
	}
	if IsRetryable(plain) {
		t.Error("plain errors should never be retryable")
	}

	appErr, ok := As(retryable)
	if !ok || appErr != retryable {
		t.Error("As() failed to extract the AppError")
	}
}

func TestIsCritical(t *testing.T) {
	critical := AIAuthentication(nil)
	critical.Critical = true

	if !IsCritical(critical) {
		t.Error("expected critical error to report critical")
	}
	if IsCritical(errors.New("plain")) {
		t.Error("plain errors should never be critical")
	}
}
