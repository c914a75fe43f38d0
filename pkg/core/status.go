package core

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Assertion failed (expected content not found)
	StatusErrored                   // Element, session or unexpected error
	StatusSkipped                   // Not reached because an earlier step ended the flow
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// ErrorCategory classifies the type of error for reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Expected page or element content not found
	ErrCategoryElement                         // Selector never satisfied its wait condition
	ErrCategorySession                         // Browser or driver transport failure
	ErrCategoryConfig                          // Malformed action or flow definition
	ErrCategoryUnexpected                      // Anything else: I/O, OCR backend, scripts
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryElement:
		return "element"
	case ErrCategorySession:
		return "session"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Classification returns the flow outcome an error of this category produces.
func (c ErrorCategory) Classification() Classification {
	switch c {
	case ErrCategoryNone:
		return ClassPass
	case ErrCategoryAssertion:
		return ClassAssertion
	case ErrCategoryElement:
		return ClassElement
	case ErrCategorySession:
		return ClassSession
	default:
		return ClassUnexpected
	}
}

// Classification is the fixed outcome of one flow. Its integer value is the
// exit code of a single-flow run and the exit_code field of a report entry.
type Classification int

const (
	ClassPass       Classification = 0
	ClassAssertion  Classification = 1
	ClassElement    Classification = 2
	ClassSession    Classification = 3
	ClassUnexpected Classification = 4
)

// Label returns the report status label. The labels are the ones existing
// report consumers match on and must not change.
func (c Classification) Label() string {
	switch c {
	case ClassPass:
		return "PASS_NO_ERROR_FOUND"
	case ClassAssertion:
		return "ERROR_KEYWORD_FOUND"
	case ClassElement:
		return "SELENIUM_TIMEOUT_OR_NO_SUCH_ELEMENT"
	case ClassSession:
		return "WEBDRIVER_ERROR"
	default:
		return "UNEXPECTED_ERROR"
	}
}

// String returns the label.
func (c Classification) String() string {
	return c.Label()
}

// IsPass reports whether the flow passed.
func (c Classification) IsPass() bool {
	return c == ClassPass
}
