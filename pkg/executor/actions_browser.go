package executor

import (
	"context"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
)

func (e *Executor) gotoURL(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.URL == "" {
		return missing(a, "url")
	}
	if err := e.session.Navigate(ctx, a.URL); err != nil {
		return errored(err)
	}
	return passed("navigated to %s", a.URL)
}

func (e *Executor) typeText(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.Selector == "" {
		return missing(a, "selector")
	}
	el, err := e.find(ctx, a, core.ConditionVisible)
	if err != nil {
		return errored(err)
	}
	if err := el.Clear(ctx); err != nil {
		return errored(err)
	}
	if err := el.SendKeys(ctx, a.Text); err != nil {
		return errored(err)
	}
	return passed("typed into %s", a.Selector)
}

func (e *Executor) click(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.Selector == "" {
		return missing(a, "selector")
	}
	el, err := e.find(ctx, a, core.ConditionClickable)
	if err != nil {
		return errored(err)
	}
	if err := el.Click(ctx); err != nil {
		return errored(err)
	}
	return passed("clicked %s", a.Selector)
}

func waitFor(cond core.Condition) handler {
	return func(e *Executor, ctx context.Context, a flow.Action) *core.CommandResult {
		if a.Selector == "" {
			return missing(a, "selector")
		}
		if _, err := e.find(ctx, a, cond); err != nil {
			return errored(err)
		}
		return passed("%s is %s", a.Selector, cond)
	}
}

func (e *Executor) sleepFor(ctx context.Context, a flow.Action) *core.CommandResult {
	d := seconds(a.Seconds, DefaultSleep)
	if err := e.sleep(ctx, d); err != nil {
		return errored(err)
	}
	return passed("slept %s", d)
}

func (e *Executor) switchToFrame(ctx context.Context, a flow.Action) *core.CommandResult {
	if a.Selector == "" {
		return missing(a, "selector")
	}
	frame, err := e.find(ctx, a, core.ConditionPresent)
	if err != nil {
		return errored(err)
	}
	if err := e.session.SwitchToFrame(ctx, frame); err != nil {
		return errored(err)
	}
	return passed("switched to frame %s", a.Selector)
}

func (e *Executor) switchToDefault(ctx context.Context, _ flow.Action) *core.CommandResult {
	if err := e.session.SwitchToDefault(ctx); err != nil {
		return errored(err)
	}
	return passed("switched to default content")
}
