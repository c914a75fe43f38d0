// Package validator lints webcheck suites before execution.
// It parses every suite file upfront and reports problems the executor
// would only hit when it reaches the offending step.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
	"github.com/devicelab-dev/webcheck-runner/pkg/ocr"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Flow    string // empty for file-level errors
	Step    int    // 1-based, 0 for flow-level errors
	Message string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Flow == "":
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	case e.Step == 0:
		return fmt.Sprintf("%s: %s: %s", e.File, e.Flow, e.Message)
	default:
		return fmt.Sprintf("%s: %s: step %d: %s", e.File, e.Flow, e.Step, e.Message)
	}
}

// Result contains the validation result.
type Result struct {
	// Files is the list of suite file paths in execution order.
	Files []string
	// Suites holds the parsed suite of every file that loaded.
	Suites []*flow.Suite
	// Errors contains all validation errors found.
	Errors []error
	// Warnings are problems that do not stop a run.
	Warnings []string
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// FlowCount returns the number of flows across all suites.
func (r *Result) FlowCount() int {
	n := 0
	for _, s := range r.Suites {
		n += len(s.Flows)
	}
	return n
}

// requirement is one required field of an action kind. Either field
// satisfies it when alt is set.
type requirement struct {
	field string
	alt   string
	get   func(flow.Action) string
}

var (
	reqURL      = requirement{field: "url", get: func(a flow.Action) string { return a.URL }}
	reqSelector = requirement{field: "selector", get: func(a flow.Action) string { return a.Selector }}
	reqText     = requirement{field: "text", alt: "value", get: flow.Action.Needle}
	reqPath     = requirement{field: "path", get: func(a flow.Action) string { return a.Path }}
	reqName     = requirement{field: "name", get: func(a flow.Action) string { return a.Name }}
	reqScript   = requirement{field: "script", get: func(a flow.Action) string { return a.Script }}
	reqCaptcha  = requirement{field: "captcha_selector", get: func(a flow.Action) string { return a.CaptchaSelector }}
	reqInput    = requirement{field: "input_selector", get: func(a flow.Action) string { return a.InputSelector }}
)

// required lists the fields every action kind needs. Kinds without an
// entry need nothing beyond "action".
var required = map[flow.ActionKind][]requirement{
	flow.ActionGoto:                     {reqURL},
	flow.ActionType:                     {reqSelector},
	flow.ActionClick:                    {reqSelector},
	flow.ActionWaitPresence:             {reqSelector},
	flow.ActionWaitVisible:              {reqSelector},
	flow.ActionWaitClickable:            {reqSelector},
	flow.ActionAssertPageContains:       {reqText},
	flow.ActionAssertPageNotContains:    {reqText},
	flow.ActionAssertElementContains:    {reqSelector, reqText},
	flow.ActionAssertElementNotContains: {reqSelector, reqText},
	flow.ActionAssertScript:             {reqScript},
	flow.ActionScreenshot:               {reqPath},
	flow.ActionSaveSource:               {reqPath},
	flow.ActionSetVar:                   {reqName},
	flow.ActionPrompt:                   {reqName},
	flow.ActionRunScript:                {reqScript},
	flow.ActionOCRCaptcha:               {reqSelector, reqName},
	flow.ActionSolveCaptcha:             {reqCaptcha, reqInput},
	flow.ActionSwitchToFrame:            {reqSelector},
	flow.ActionSaveCookies:              {reqPath},
	flow.ActionLoadCookies:              {reqPath},
}

// Validator validates suite files.
type Validator struct{}

// New creates a new Validator.
func New() *Validator {
	return &Validator{}
}

// Validate validates a suite file or every suite file in a directory.
func (v *Validator) Validate(path string) *Result {
	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    path,
			Message: fmt.Sprintf("cannot access: %v", err),
		})
		return result
	}

	var files []string
	if info.IsDir() {
		files, err = collectSuiteFiles(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("failed to scan directory: %v", err),
			})
			return result
		}
		if len(files) == 0 {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: "no .json, .yaml or .yml suite files found",
			})
			return result
		}
	} else {
		files = []string{path}
	}

	for _, file := range files {
		v.validateFile(file, result)
	}
	return result
}

// collectSuiteFiles finds all suite files in a directory, sorted by path.
func collectSuiteFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

func (v *Validator) validateFile(file string, result *Result) {
	suite, err := flow.ParseFile(file)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    file,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}
	result.Files = append(result.Files, file)
	result.Suites = append(result.Suites, suite)

	if len(suite.Flows) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: suite has no flows", file))
	}
	if suite.Timeout != nil && *suite.Timeout <= 0 {
		result.Errors = append(result.Errors, &ValidationError{
			File:    file,
			Message: fmt.Sprintf("timeout must be positive, got %d", *suite.Timeout),
		})
	}

	seen := make(map[string]int)
	for i, f := range suite.Flows {
		if prev, ok := seen[f.Name]; ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: flows %d and %d are both named %q", file, prev, i+1, f.Name))
		} else {
			seen[f.Name] = i + 1
		}
		v.validateFlow(file, f, result)
	}
}

func (v *Validator) validateFlow(file string, f flow.Flow, result *Result) {
	fail := func(step int, format string, args ...interface{}) {
		result.Errors = append(result.Errors, &ValidationError{
			File:    file,
			Flow:    f.Name,
			Step:    step,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if f.Timeout != nil && *f.Timeout <= 0 {
		fail(0, "timeout must be positive, got %d", *f.Timeout)
	}
	if len(f.Steps) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s: flow has no steps", file, f.Name))
	}

	for i, a := range f.Steps {
		step := a.Index
		if step == 0 {
			step = i + 1
		}
		for _, msg := range CheckAction(a) {
			fail(step, "%s", msg)
		}
	}
}

// CheckAction returns the problems of a single action.
func CheckAction(a flow.Action) []string {
	if a.Kind == "" {
		return []string{`missing required field "action"`}
	}
	if !a.Kind.IsKnown() {
		return []string{fmt.Sprintf("Unsupported action: %s", a.Kind)}
	}

	var problems []string
	for _, req := range required[a.Kind] {
		if req.get(a) != "" {
			continue
		}
		if req.alt != "" {
			problems = append(problems, fmt.Sprintf("%s: missing required field %q (or %q)", a.Kind, req.field, req.alt))
		} else {
			problems = append(problems, fmt.Sprintf("%s: missing required field %q", a.Kind, req.field))
		}
	}

	// Selectors holding ${...} are only known at run time.
	for _, sel := range []string{a.Selector, a.CaptchaSelector, a.InputSelector, a.SubmitSelector} {
		if sel == "" || strings.Contains(sel, "${") {
			continue
		}
		if _, err := flow.ResolveLocator(sel); err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid selector %q: %v", a.Kind, sel, err))
		}
	}

	if a.Timeout != nil && *a.Timeout <= 0 {
		problems = append(problems, fmt.Sprintf("%s: timeout must be positive, got %d", a.Kind, *a.Timeout))
	}
	if a.Seconds != nil && *a.Seconds < 0 {
		problems = append(problems, fmt.Sprintf("%s: seconds must not be negative", a.Kind))
	}
	if a.MaxAttempts != nil && *a.MaxAttempts <= 0 {
		problems = append(problems, fmt.Sprintf("%s: max_attempts must be positive, got %d", a.Kind, *a.MaxAttempts))
	}
	if a.OnExhausted != "" {
		if _, err := ocr.ParsePolicy(a.OnExhausted); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", a.Kind, err))
		}
	}
	if a.Preprocessing != "" && !knownMode(ocr.Mode(a.Preprocessing)) {
		problems = append(problems, fmt.Sprintf("%s: unknown preprocessing %q", a.Kind, a.Preprocessing))
	}
	return problems
}

func knownMode(m ocr.Mode) bool {
	for _, known := range ocr.Modes {
		if m == known {
			return true
		}
	}
	return false
}
