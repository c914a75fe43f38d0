package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
)

// flowState is the lifecycle of one flow run.
type flowState int

const (
	stateStarting flowState = iota
	stateExecuting
	stateCompleted
	stateAssertionFailed
	stateElementError
	stateDriverError
	stateUnexpectedError
)

func (s flowState) String() string {
	switch s {
	case stateStarting:
		return "Starting"
	case stateExecuting:
		return "Executing"
	case stateCompleted:
		return "Completed"
	case stateAssertionFailed:
		return "AssertionFailed"
	case stateElementError:
		return "ElementError"
	case stateDriverError:
		return "DriverError"
	default:
		return "UnexpectedError"
	}
}

// terminalState maps a classification to the state the flow ends in.
func terminalState(c core.Classification) flowState {
	switch c {
	case core.ClassPass:
		return stateCompleted
	case core.ClassAssertion:
		return stateAssertionFailed
	case core.ClassElement:
		return stateElementError
	case core.ClassSession:
		return stateDriverError
	default:
		return stateUnexpectedError
	}
}

// FlowSettings are the merged knobs for one flow.
type FlowSettings struct {
	Timeout    int // seconds
	Headless   bool
	DriverPath string
}

// FlowRunner executes a single flow.
type FlowRunner struct {
	flow     flow.Flow
	settings FlowSettings
	vars     Vars
	config   RunnerConfig

	state flowState
	steps []core.StepResult
}

// NewFlowRunner creates a runner for f. vars must be owned by this flow.
func NewFlowRunner(f flow.Flow, settings FlowSettings, vars Vars, cfg RunnerConfig) *FlowRunner {
	return &FlowRunner{
		flow:     f,
		settings: settings,
		vars:     vars,
		config:   cfg,
	}
}

func (fr *FlowRunner) transition(to flowState, detail string) {
	logger.Debug("flow %s: %s -> %s %s", fr.flow.Name, fr.state, to, detail)
	fr.state = to
}

// Run executes the flow and returns its result. It never panics and
// always closes the session it opened.
func (fr *FlowRunner) Run(ctx context.Context) (result core.Result) {
	start := time.Now()
	result = core.Result{
		Name:      fr.flow.Name,
		URL:       fr.flow.URL,
		Timeout:   fr.settings.Timeout,
		Headless:  fr.settings.Headless,
		StartTime: start,
	}
	fr.state = stateStarting
	logger.Info("flow %s: starting (timeout=%ds headless=%v)", fr.flow.Name, fr.settings.Timeout, fr.settings.Headless)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("flow %s: panic: %v\n%s", fr.flow.Name, r, debug.Stack())
			result.Classification = core.ClassUnexpected
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.Duration = time.Since(start)
		fr.settleSteps(result.Error)
		result.Steps = fr.steps
		fr.transition(terminalState(result.Classification), result.Error)
		logger.Info("flow %s: %s in %s", fr.flow.Name, result.Classification, result.Duration)
	}()

	fr.steps = make([]core.StepResult, len(fr.flow.Steps))
	for i, action := range fr.flow.Steps {
		fr.steps[i] = core.StepResult{Index: stepIndex(action, i), Action: action.Describe(), Status: core.StatusPending}
	}

	session, err := fr.config.Launcher.Open(ctx, core.SessionOptions{
		Headless:   fr.settings.Headless,
		DriverPath: fr.settings.DriverPath,
	})
	if err != nil {
		result.Classification = core.ClassUnexpected
		if core.CategoryOf(err) == core.ErrCategorySession {
			result.Classification = core.ClassSession
		}
		result.Error = err.Error()
		return result
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("flow %s: closing session: %v", fr.flow.Name, err)
		}
	}()

	exec := NewExecutor(session, fr.vars, Options{
		Timeout:       time.Duration(fr.settings.Timeout) * time.Second,
		Solver:        fr.config.Solver,
		Input:         fr.config.Input,
		CaptchaPolicy: fr.config.CaptchaPolicy,
	})
	defer exec.Close()

	for i, action := range fr.flow.Steps {
		if err := ctx.Err(); err != nil {
			result.Classification = core.ClassUnexpected
			result.Error = fmt.Sprintf("cancelled before step %d: %v", i+1, err)
			return result
		}

		index := stepIndex(action, i)
		action.Index = index
		fr.transition(stateExecuting, fmt.Sprintf("step %d: %s", index, action.Describe()))
		fr.steps[i].Status = core.StatusRunning

		res := exec.Execute(ctx, action)
		step := core.StepResult{
			Index:    index,
			Action:   action.Describe(),
			Status:   res.Status,
			Duration: res.Duration,
			Message:  res.Message,
		}
		if res.Error != nil {
			step.Error = res.Error.Error()
			step.Category = core.CategoryOf(res.Error)
			fr.logStepError(step, res.Error)
		}
		fr.steps[i] = step
		if fr.config.OnStepComplete != nil {
			fr.config.OnStepComplete(step)
		}

		class := res.Classification()
		if class.IsPass() {
			continue
		}
		result.Classification = class
		if res.Status == core.StatusErrored {
			result.Error = fmt.Sprintf("step %d (%s): %s", index, action.Kind, res.Message)
		}
		return result
	}

	result.Classification = core.ClassPass
	return result
}

func stepIndex(a flow.Action, i int) int {
	if a.Index != 0 {
		return a.Index
	}
	return i + 1
}

// settleSteps gives every step a terminal status once the flow has ended:
// steps never reached are skipped, and a step cut off by a panic is errored.
func (fr *FlowRunner) settleSteps(interruption string) {
	for i := range fr.steps {
		step := &fr.steps[i]
		switch {
		case step.Status.IsTerminal():
		case step.Status == core.StatusRunning:
			step.Status = core.StatusErrored
			step.Category = core.ErrCategoryUnexpected
			step.Error = interruption
		default:
			step.Status = core.StatusSkipped
		}
	}
}

func (fr *FlowRunner) logStepError(step core.StepResult, err error) {
	attrs := []any{"flow", fr.flow.Name, "step", step.Index, "category", step.Category.String()}
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		for _, k := range sortedKeys(execErr.Details) {
			if k != "step" {
				attrs = append(attrs, k, execErr.Details[k])
			}
		}
	}
	logger.With(attrs...).Warn(step.Action, "error", step.Error)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
