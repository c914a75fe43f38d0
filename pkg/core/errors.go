package core

import (
	"context"
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, wait_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches another ExecutionError by code, so wrapped copies of a
// predefined error still satisfy errors.Is(err, ErrWaitTimeout).
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Element errors
	ErrElementNotFound = NewExecutionError(ErrCategoryElement, "element_not_found", "element not found")
	ErrWaitTimeout     = NewExecutionError(ErrCategoryElement, "wait_timeout", "wait condition timed out")

	// Session errors
	ErrSessionFailed     = NewExecutionError(ErrCategorySession, "session_failed", "browser session error")
	ErrServerUnreachable = NewExecutionError(ErrCategorySession, "server_unreachable", "could not connect to browser driver")

	// Config errors
	ErrInvalidConfig     = NewExecutionError(ErrCategoryConfig, "invalid_config", "invalid configuration")
	ErrMissingRequired   = NewExecutionError(ErrCategoryConfig, "missing_required", "missing required field")
	ErrUnsupportedAction = NewExecutionError(ErrCategoryConfig, "unsupported_action", "unsupported action")

	// Assertion errors, only carried by StatusFailed results
	ErrCaptchaUnsolved = NewExecutionError(ErrCategoryAssertion, "captcha_unsolved", "captcha not solved")

	// Unexpected errors
	ErrScript = NewExecutionError(ErrCategoryUnexpected, "script_error", "script failed")
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// CategoryOf returns the category of the outermost ExecutionError in err's
// chain. A bare context deadline counts as a wait timeout.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCategoryElement
	}
	return ErrCategoryUnexpected
}

// Classify maps an error to the flow classification it produces.
func Classify(err error) Classification {
	return CategoryOf(err).Classification()
}
