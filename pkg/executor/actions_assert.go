package executor

import (
	"context"
	"regexp"
	"strings"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
)

// errorKeyword matches "error" as a whole word in any case.
var errorKeyword = regexp.MustCompile(`(?i)\berror\b`)

func pageContains(want bool) handler {
	return func(e *Executor, ctx context.Context, a flow.Action) *core.CommandResult {
		needle := a.Needle()
		if needle == "" {
			return missing(a, "text")
		}
		text, err := e.session.PageText(ctx)
		if err != nil {
			return errored(err)
		}
		return containment(strings.Contains(text, needle), want, "page", needle)
	}
}

func elementContains(want bool) handler {
	return func(e *Executor, ctx context.Context, a flow.Action) *core.CommandResult {
		if a.Selector == "" {
			return missing(a, "selector")
		}
		needle := a.Needle()
		if needle == "" {
			return missing(a, "text")
		}
		el, err := e.find(ctx, a, core.ConditionVisible)
		if err != nil {
			return errored(err)
		}
		text, err := el.Text(ctx)
		if err != nil {
			return errored(err)
		}
		return containment(strings.Contains(text, needle), want, a.Selector, needle)
	}
}

func containment(found, want bool, where, needle string) *core.CommandResult {
	switch {
	case found && want:
		return passed("%s contains %q", where, needle)
	case !found && !want:
		return passed("%s does not contain %q", where, needle)
	case want:
		return failed("expected %s to contain %q", where, needle)
	default:
		return failed("expected %s not to contain %q", where, needle)
	}
}

func (e *Executor) checkErrorKeyword(ctx context.Context, _ flow.Action) *core.CommandResult {
	text, err := e.session.PageText(ctx)
	if err != nil {
		return errored(err)
	}
	if loc := errorKeyword.FindStringIndex(text); loc != nil {
		return failed("error keyword found in page: %q", excerpt(text, loc[0], loc[1]))
	}
	return passed("no error keyword in page")
}

// excerpt returns the match with some surrounding context on one line.
func excerpt(text string, start, end int) string {
	const margin = 40
	from := start - margin
	if from < 0 {
		from = 0
	}
	to := end + margin
	if to > len(text) {
		to = len(text)
	}
	return strings.Join(strings.Fields(strings.ToValidUTF8(text[from:to], "")), " ")
}
