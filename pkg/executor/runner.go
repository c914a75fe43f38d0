package executor

import (
	"context"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
	"github.com/devicelab-dev/webcheck-runner/pkg/ocr"
	"github.com/devicelab-dev/webcheck-runner/pkg/prompt"
)

// Hardcoded knob defaults, used when neither flow, suite nor runner set them.
const (
	DefaultTimeout  = 20 // seconds
	DefaultHeadless = false
)

// RunnerConfig configures the suite runner.
type RunnerConfig struct {
	Launcher core.Launcher // Opens one session per flow

	// Runner-level knob defaults (command line or workspace config); nil
	// means unset
	Timeout    *int
	Headless   *bool
	DriverPath string

	StopOnFail bool // Stop after the first flow that does not pass

	// Variables: Vars < suite variables < flow variables < Overrides
	Vars      map[string]string
	Overrides map[string]string

	Solver        *ocr.Solver          // nil when no OCR engine is configured
	Input         prompt.Input         // nil: no interactive channel
	CaptchaPolicy ocr.ExhaustionPolicy // Default solve_captcha exhaustion policy

	// Live progress callbacks
	OnFlowStart    func(flowIdx, totalFlows int, name string)
	OnStepComplete func(step core.StepResult)
	OnFlowEnd      func(result core.Result)
}

// Runner runs the flows of a suite one after another.
type Runner struct {
	config RunnerConfig
}

// New creates a new Runner.
func New(cfg RunnerConfig) *Runner {
	return &Runner{config: cfg}
}

// Run executes the suite's flows in order and returns one result per flow
// that ran. With StopOnFail, flows after the first failure are neither
// run nor reported.
func (r *Runner) Run(ctx context.Context, suite flow.Suite) []core.Result {
	results := make([]core.Result, 0, len(suite.Flows))
	total := len(suite.Flows)

	for i, f := range suite.Flows {
		if ctx.Err() != nil {
			logger.Warn("run cancelled, %d flows not started", total-i)
			break
		}

		if r.config.OnFlowStart != nil {
			r.config.OnFlowStart(i, total, f.Name)
		}

		vars := NewVars(r.config.Vars, suite.Variables, f.Variables, r.config.Overrides)
		fr := NewFlowRunner(f, r.Settings(suite, f), vars, r.config)
		result := fr.Run(ctx)
		results = append(results, result)

		if r.config.OnFlowEnd != nil {
			r.config.OnFlowEnd(result)
		}

		if r.config.StopOnFail && !result.Passed() {
			logger.Info("stop on fail: %s ended with %s, %d flows skipped", f.Name, result.Classification, total-i-1)
			break
		}
	}
	return results
}

// Settings merges the knobs for f: flow > suite > runner > hardcoded.
func (r *Runner) Settings(suite flow.Suite, f flow.Flow) FlowSettings {
	s := FlowSettings{
		Timeout:  DefaultTimeout,
		Headless: DefaultHeadless,
	}

	for _, t := range []*int{r.config.Timeout, suite.Timeout, f.Timeout} {
		if t != nil && *t > 0 {
			s.Timeout = *t
		}
	}
	for _, h := range []*bool{r.config.Headless, suite.Headless, f.Headless} {
		if h != nil {
			s.Headless = *h
		}
	}
	for _, p := range []string{r.config.DriverPath, suite.DriverPath, f.DriverPath} {
		if p != "" {
			s.DriverPath = p
		}
	}
	return s
}
