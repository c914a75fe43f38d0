package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
	"github.com/devicelab-dev/webcheck-runner/pkg/ocr"
)

// errNoSolver is returned when the run was started without an OCR engine.
var errNoSolver = fmt.Errorf("%w: no OCR engine configured", ocr.ErrUnavailable)

func (e *Executor) ocrCaptcha(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.Selector == "" {
		return missing(a, "selector")
	}
	if a.Name == "" {
		return missing(a, "name")
	}
	if e.opts.Solver == nil {
		return errored(errNoSolver)
	}

	mode := ocr.Mode(a.Preprocessing)
	if mode == "" {
		mode = ocr.ModeDefault
	}
	solver := e.opts.Solver
	if a.Timeout != nil && *a.Timeout > 0 {
		solver = solver.WithElementTimeout(e.stepTimeout(a))
	}

	text, err := solver.Recognize(ctx, e.session, a.Selector, mode)
	switch {
	case errors.Is(err, ocr.ErrUnavailable):
		return errored(err)
	case err != nil:
		if ctx.Err() != nil {
			return errored(ctx.Err())
		}
		logger.Warn("captcha recognition failed for %s: %v", a.Selector, err)
		text = ""
	}

	e.vars[a.Name] = text
	return &core.CommandResult{
		Status:  core.StatusPassed,
		Message: fmt.Sprintf("%s = %q", a.Name, text),
		Data:    text,
	}
}

func (e *Executor) solveCaptcha(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.CaptchaSelector == "" {
		return missing(a, "captcha_selector")
	}
	if a.InputSelector == "" {
		return missing(a, "input_selector")
	}
	if e.opts.Solver == nil {
		return errored(errNoSolver)
	}

	policy := e.opts.CaptchaPolicy
	if a.OnExhausted != "" {
		p, err := ocr.ParsePolicy(a.OnExhausted)
		if err != nil {
			return errored(core.ErrInvalidConfig.WithMessage(err.Error()))
		}
		policy = p
	}

	req := ocr.SolveRequest{
		CaptchaSelector: a.CaptchaSelector,
		InputSelector:   a.InputSelector,
		SubmitSelector:  a.SubmitSelector,
		MaxAttempts:     ocr.DefaultMaxAttempts,
		Mode:            ocr.Mode(a.Preprocessing),
	}
	if a.MaxAttempts != nil && *a.MaxAttempts > 0 {
		req.MaxAttempts = *a.MaxAttempts
	}

	res, err := e.opts.Solver.Solve(ctx, e.session, req)
	if err != nil {
		return errored(err)
	}
	if res.Solved {
		return &core.CommandResult{
			Status:  core.StatusPassed,
			Message: fmt.Sprintf("captcha solved on attempt %d", res.Attempts),
			Data:    res,
		}
	}

	msg := fmt.Sprintf("captcha not solved after %d attempts", res.Attempts)
	if policy == ocr.PolicyFail {
		return &core.CommandResult{
			Status:  core.StatusFailed,
			Error:   core.ErrCaptchaUnsolved.WithMessage(msg),
			Message: msg,
			Data:    res,
		}
	}
	logger.Warn("%s, continuing", msg)
	return &core.CommandResult{Status: core.StatusPassed, Message: msg + ", continuing", Data: res}
}
