package core

import (
	"time"
)

// CommandResult represents the outcome of executing a single action
type CommandResult struct {
	Status   StepStatus    `json:"status"`
	Error    error         `json:"-"`
	Duration time.Duration `json:"duration"`

	// Human-readable output
	Message string `json:"message,omitempty"`

	// Generic data for action-specific results
	// Examples: OCR text, captcha attempts used
	Data interface{} `json:"data,omitempty"`
}

// Classification returns the flow outcome this step forces, or ClassPass
// when the flow may continue.
func (r *CommandResult) Classification() Classification {
	switch r.Status {
	case StatusFailed:
		return ClassAssertion
	case StatusErrored:
		if r.Error == nil {
			return ClassUnexpected
		}
		return Classify(r.Error)
	default:
		return ClassPass
	}
}

// StepResult records one executed action for progress output.
type StepResult struct {
	Index    int           `json:"index"` // 1-based position in flow
	Action   string        `json:"action"`
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`
	Duration time.Duration `json:"duration"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Result is the single outcome of one flow. It is produced exactly once per
// flow and not modified afterwards.
type Result struct {
	Name           string         `json:"name"`
	URL            string         `json:"url,omitempty"`
	Classification Classification `json:"exit_code"`
	Timeout        int            `json:"timeout"`
	Headless       bool           `json:"headless"`
	Error          string         `json:"error,omitempty"`
	StartTime      time.Time      `json:"-"`
	Duration       time.Duration  `json:"-"`
	Steps          []StepResult   `json:"-"`
}

// Passed reports whether the flow passed.
func (r Result) Passed() bool {
	return r.Classification.IsPass()
}
