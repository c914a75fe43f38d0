package executor

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
	"github.com/devicelab-dev/webcheck-runner/pkg/jsengine"
)

// sessionPage exposes the session's document to scripts.
type sessionPage struct {
	ctx     context.Context
	session core.Session
}

func (p sessionPage) Text() (string, error)   { return p.session.PageText(p.ctx) }
func (p sessionPage) Source() (string, error) { return p.session.PageSource(p.ctx) }

// script returns the flow's JS engine with the current variables and page.
func (e *Executor) script(ctx context.Context) *jsengine.Engine {
	if e.js == nil {
		e.js = jsengine.New()
	}
	e.js.SetVars(e.vars)
	e.js.SetPage(sessionPage{ctx: ctx, session: e.session})
	return e.js
}

// runScript runs JavaScript. Keys the script stores on `output` become
// flow variables.
func (e *Executor) runScript(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.Script == "" {
		return missing(a, "script")
	}
	js := e.script(ctx)
	if err := js.Run(a.Script); err != nil {
		return errored(core.ErrScript.WithMessage(err.Error()).WithCause(err))
	}

	out := js.Output()
	for k, v := range out {
		e.vars[k] = v
	}
	return passed("script set %d variables", len(out))
}

// assertScript evaluates a JavaScript expression; a falsy result fails the flow.
func (e *Executor) assertScript(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.Script == "" {
		return missing(a, "script")
	}
	ok, err := e.script(ctx).EvalBool(a.Script)
	if err != nil {
		return errored(core.ErrScript.WithMessage(err.Error()).WithCause(err))
	}
	if !ok {
		return failed("script assertion is false: %s", a.Script)
	}
	return passed("script assertion holds")
}

func (e *Executor) setVar(_ context.Context, a flow.Action) *core.CommandResult {
	if a.Name == "" {
		return missing(a, "name")
	}
	e.vars[a.Name] = a.Needle()
	return passed("%s set", a.Name)
}

// waitUser pauses until the operator presses Enter. Without a terminal it
// sleeps instead.
func (e *Executor) waitUser(ctx context.Context, a flow.Action) *core.CommandResult {
	message := a.Needle()
	if message == "" {
		message = "Complete the manual step in the browser, then press Enter to continue..."
	}
	if _, ok := e.opts.Input.Read(ctx, message); ok {
		return passed("operator continued")
	}

	d := seconds(a.Seconds, DefaultWaitUserSleep)
	logStep(a, "no interactive input, sleeping %s", d)
	if err := e.sleep(ctx, d); err != nil {
		return errored(err)
	}
	return passed("no interactive input, waited %s", d)
}

// prompt reads one line into a variable; without a terminal the variable
// is set to "".
func (e *Executor) prompt(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.Name == "" {
		return missing(a, "name")
	}
	message := a.Needle()
	if message == "" {
		message = fmt.Sprintf("Enter value for %s:", a.Name)
	}
	line, ok := e.opts.Input.Read(ctx, message)
	if !ok {
		logStep(a, "no interactive input, %s set to empty", a.Name)
		line = ""
	}
	e.vars[a.Name] = line
	return passed("%s set from prompt", a.Name)
}
