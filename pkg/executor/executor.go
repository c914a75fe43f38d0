// Package executor interprets flows: it resolves variables, dispatches each
// action to its handler, classifies the outcome and aggregates suites.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
	"github.com/devicelab-dev/webcheck-runner/pkg/jsengine"
	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
	"github.com/devicelab-dev/webcheck-runner/pkg/ocr"
	"github.com/devicelab-dev/webcheck-runner/pkg/prompt"
)

// Defaults applied when an action leaves the field unset.
const (
	DefaultSleep         = 1 * time.Second
	DefaultWaitUserSleep = 30 * time.Second
)

// handler executes one kind of action.
type handler func(e *Executor, ctx context.Context, a flow.Action) *core.CommandResult

// handlers is the dispatch table. Every flow.ActionKind has exactly one row.
var handlers map[flow.ActionKind]handler

func init() {
	handlers = map[flow.ActionKind]handler{
		flow.ActionGoto:          (*Executor).gotoURL,
		flow.ActionType:          (*Executor).typeText,
		flow.ActionClick:         (*Executor).click,
		flow.ActionWaitPresence:  waitFor(core.ConditionPresent),
		flow.ActionWaitVisible:   waitFor(core.ConditionVisible),
		flow.ActionWaitClickable: waitFor(core.ConditionClickable),
		flow.ActionSleep:         (*Executor).sleepFor,

		flow.ActionAssertPageContains:       pageContains(true),
		flow.ActionAssertPageNotContains:    pageContains(false),
		flow.ActionAssertElementContains:    elementContains(true),
		flow.ActionAssertElementNotContains: elementContains(false),
		flow.ActionCheckErrorKeyword:        (*Executor).checkErrorKeyword,
		flow.ActionAssertScript:             (*Executor).assertScript,

		flow.ActionScreenshot: (*Executor).screenshot,
		flow.ActionSaveSource: (*Executor).saveSource,

		flow.ActionSetVar:    (*Executor).setVar,
		flow.ActionWaitUser:  (*Executor).waitUser,
		flow.ActionPrompt:    (*Executor).prompt,
		flow.ActionRunScript: (*Executor).runScript,

		flow.ActionOCRCaptcha:   (*Executor).ocrCaptcha,
		flow.ActionSolveCaptcha: (*Executor).solveCaptcha,

		flow.ActionSwitchToFrame:          (*Executor).switchToFrame,
		flow.ActionSwitchToDefaultContent: (*Executor).switchToDefault,

		flow.ActionSaveCookies: (*Executor).saveCookies,
		flow.ActionLoadCookies: (*Executor).loadCookies,
	}
}

// Options configures an Executor.
type Options struct {
	Timeout       time.Duration        // Default element wait
	Solver        *ocr.Solver          // nil: OCR unavailable
	Input         prompt.Input         // nil: no interactive channel
	CaptchaPolicy ocr.ExhaustionPolicy // Default for solve_captcha
}

// Executor runs actions against one session, reading and writing one
// flow's variables.
type Executor struct {
	session core.Session
	vars    Vars
	opts    Options
	js      *jsengine.Engine

	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor bound to session and vars.
func NewExecutor(session core.Session, vars Vars, opts Options) *Executor {
	if opts.Input == nil {
		opts.Input = prompt.None{}
	}
	if opts.CaptchaPolicy == "" {
		opts.CaptchaPolicy = ocr.PolicyContinue
	}
	if vars == nil {
		vars = make(Vars)
	}
	return &Executor{
		session: session,
		vars:    vars,
		opts:    opts,
		sleep:   sleepContext,
	}
}

// Vars returns the live variable mapping.
func (e *Executor) Vars() Vars {
	return e.vars
}

// Close releases the script engine if one was started.
func (e *Executor) Close() {
	if e.js != nil {
		e.js.Close()
		e.js = nil
	}
}

// Execute interpolates a and runs its handler.
func (e *Executor) Execute(ctx context.Context, a flow.Action) *core.CommandResult {
	start := time.Now()
	result := e.dispatch(ctx, a)
	result.Duration = time.Since(start)
	return result
}

func (e *Executor) dispatch(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.Kind == "" {
		return missing(a, "action")
	}
	h, ok := handlers[a.Kind]
	if !ok {
		return errored(core.ErrUnsupportedAction.WithMessage(fmt.Sprintf("Unsupported action: %s", a.Kind)))
	}
	return h(e, ctx, interpolateAction(a, e.vars))
}

// stepTimeout is the action's own timeout, else the flow's.
func (e *Executor) stepTimeout(a flow.Action) time.Duration {
	if a.Timeout != nil && *a.Timeout > 0 {
		return time.Duration(*a.Timeout) * time.Second
	}
	return e.opts.Timeout
}

// find resolves a.Selector and waits for cond. Session errors carry the
// locator and step in their details.
func (e *Executor) find(ctx context.Context, a flow.Action, cond core.Condition) (core.Element, error) {
	loc, err := flow.ResolveLocator(a.Selector)
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("%s: invalid selector", a.Kind)).WithCause(err)
	}
	el, err := e.session.Find(ctx, loc, cond, e.stepTimeout(a))
	if execErr, ok := err.(*core.ExecutionError); ok {
		return nil, execErr.WithDetails(map[string]interface{}{
			"selector":  loc.String(),
			"condition": cond.String(),
			"step":      a.Index,
		})
	}
	return el, err
}

// Result helpers

func passed(format string, args ...interface{}) *core.CommandResult {
	return &core.CommandResult{Status: core.StatusPassed, Message: fmt.Sprintf(format, args...)}
}

func failed(format string, args ...interface{}) *core.CommandResult {
	return &core.CommandResult{Status: core.StatusFailed, Message: fmt.Sprintf(format, args...)}
}

func errored(err error) *core.CommandResult {
	return &core.CommandResult{Status: core.StatusErrored, Error: err, Message: err.Error()}
}

func missing(a flow.Action, field string) *core.CommandResult {
	kind := string(a.Kind)
	if kind == "" {
		kind = fmt.Sprintf("step %d", a.Index)
	}
	return errored(core.ErrMissingRequired.WithMessage(fmt.Sprintf("%s: missing required field %q", kind, field)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// seconds converts an optional seconds field.
func seconds(v *float64, def time.Duration) time.Duration {
	if v == nil || *v < 0 {
		return def
	}
	return time.Duration(*v * float64(time.Second))
}

func logStep(a flow.Action, format string, args ...interface{}) {
	logger.Debug("step %d (%s): %s", a.Index, a.Kind, fmt.Sprintf(format, args...))
}
