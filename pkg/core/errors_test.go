package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExecutionError_Error(t *testing.T) {
	err := &ExecutionError{
		Category: ErrCategoryElement,
		Code:     "test_error",
		Message:  "test message",
	}

	if got := err.Error(); got != "test message" {
		t.Errorf("Error() = %q, want %q", got, "test message")
	}
}

func TestExecutionError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Category: ErrCategorySession,
		Code:     "test_error",
		Message:  "test message",
		Cause:    cause,
	}

	got := err.Error()
	if !strings.Contains(got, "test message") {
		t.Errorf("Error() = %q, should contain 'test message'", got)
	}
	if !strings.Contains(got, "underlying error") {
		t.Errorf("Error() = %q, should contain 'underlying error'", got)
	}
}

func TestExecutionError_WithCause(t *testing.T) {
	original := ErrElementNotFound
	cause := errors.New("custom cause")

	newErr := original.WithCause(cause)

	if newErr.Cause != cause {
		t.Error("WithCause() did not set cause")
	}
	if newErr.Code != original.Code {
		t.Error("WithCause() changed code")
	}
	if original.Cause != nil {
		t.Error("WithCause() modified original error")
	}
}

func TestExecutionError_WithMessage(t *testing.T) {
	original := ErrWaitTimeout
	newErr := original.WithMessage("waited 5s for #login")

	if newErr.Message != "waited 5s for #login" {
		t.Errorf("Message = %q", newErr.Message)
	}
	if original.Message == "waited 5s for #login" {
		t.Error("WithMessage() modified original error")
	}
}

func TestExecutionError_WithDetails(t *testing.T) {
	original := &ExecutionError{
		Code:    "test",
		Message: "test",
		Details: map[string]interface{}{"existing": "value"},
	}

	newErr := original.WithDetails(map[string]interface{}{"selector": "#button"})

	if newErr.Details["selector"] != "#button" {
		t.Error("WithDetails() did not add new details")
	}
	if newErr.Details["existing"] != "value" {
		t.Error("WithDetails() did not preserve existing details")
	}
	if _, ok := original.Details["selector"]; ok {
		t.Error("WithDetails() modified original error")
	}
}

func TestExecutionError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("step 3: %w", ErrWaitTimeout.WithMessage("custom").WithCause(errors.New("x")))

	if !errors.Is(err, ErrWaitTimeout) {
		t.Error("errors.Is() should match by code through wrapping")
	}
	if errors.Is(err, ErrElementNotFound) {
		t.Error("errors.Is() matched a different code")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Classification
	}{
		{"nil", nil, ClassPass},
		{"element not found", ErrElementNotFound, ClassElement},
		{"wait timeout wrapped", fmt.Errorf("click: %w", ErrWaitTimeout), ClassElement},
		{"deadline", context.DeadlineExceeded, ClassElement},
		{"session", ErrSessionFailed.WithCause(errors.New("EOF")), ClassSession},
		{"unreachable", ErrServerUnreachable, ClassSession},
		{"config", ErrMissingRequired, ClassUnexpected},
		{"unsupported", ErrUnsupportedAction, ClassUnexpected},
		{"plain error", errors.New("disk full"), ClassUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewExecutionError(t *testing.T) {
	err := NewExecutionError(ErrCategorySession, "custom_error", "custom message")

	if err.Category != ErrCategorySession {
		t.Errorf("Category = %s, want %s", err.Category, ErrCategorySession)
	}
	if err.Code != "custom_error" {
		t.Errorf("Code = %s, want 'custom_error'", err.Code)
	}
}
