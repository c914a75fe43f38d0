package executor

import (
	"regexp"

	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
)

// placeholderPattern matches ${name}; the name is everything up to the first '}'.
var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Vars is the variable mapping of one flow run.
type Vars map[string]string

// NewVars merges layers into a fresh mapping. Later layers win.
func NewVars(layers ...map[string]string) Vars {
	vars := make(Vars)
	for _, layer := range layers {
		for k, v := range layer {
			vars[k] = v
		}
	}
	return vars
}

// Interpolate replaces every ${name} in template with its value, or with
// "" when name is not set.
func Interpolate(template string, vars Vars) string {
	if template == "" {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := m[2 : len(m)-1]
		return vars[name]
	})
}

// interpolateAction returns a copy of a with its text fields interpolated.
func interpolateAction(a flow.Action, vars Vars) flow.Action {
	a.Selector = Interpolate(a.Selector, vars)
	a.URL = Interpolate(a.URL, vars)
	a.Text = Interpolate(a.Text, vars)
	a.Value = Interpolate(a.Value, vars)
	a.Path = Interpolate(a.Path, vars)
	return a
}
