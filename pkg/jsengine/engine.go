// Package jsengine runs the JavaScript snippets of run_script and
// assert_script actions.
package jsengine

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
)

// Page gives scripts read access to the current document.
type Page interface {
	Text() (string, error)
	Source() (string, error)
}

// Engine wraps a goja runtime. One engine lives for one flow run.
type Engine struct {
	runtime *goja.Runtime
	output  *goja.Object
	page    Page
	client  *http.Client
	mu      sync.Mutex
}

// New creates a new JS engine instance
func New() *Engine {
	e := &Engine{
		runtime: goja.New(),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	e.setupBuiltins()
	return e
}

// setupBuiltins registers all built-in functions and objects
func (e *Engine) setupBuiltins() {
	e.setupConsole()

	e.runtime.Set("json", e.jsonFunc())
	e.runtime.Set("http", e.httpModule())
	e.runtime.Set("page", e.pageObject())

	// Values written here are copied back into the flow variables
	e.output = e.runtime.NewObject()
	e.runtime.Set("output", e.output)

	e.runtime.Set("vars", e.runtime.NewObject())
}

// setupConsole routes console.log/warn/error to the run log.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(log func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			log("[js] %s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(logger.Info))
	console.Set("warn", makeConsoleFunc(logger.Warn))
	console.Set("error", makeConsoleFunc(logger.Error))
	e.runtime.Set("console", console)
}

// jsonFunc returns the json() helper which parses a JSON string
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}
		parse, ok := goja.AssertFunction(e.runtime.Get("JSON").ToObject(e.runtime).Get("parse"))
		if !ok {
			panic(e.runtime.NewTypeError("JSON.parse unavailable"))
		}
		result, err := parse(goja.Undefined(), call.Arguments[0])
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return result
	}
}

// pageObject exposes page.text() and page.source().
func (e *Engine) pageObject() *goja.Object {
	obj := e.runtime.NewObject()

	read := func(get func(Page) (string, error)) func(goja.FunctionCall) goja.Value {
		return func(goja.FunctionCall) goja.Value {
			if e.page == nil {
				panic(e.runtime.NewTypeError("no page is attached"))
			}
			s, err := get(e.page)
			if err != nil {
				panic(e.runtime.NewGoError(err))
			}
			return e.runtime.ToValue(s)
		}
	}

	obj.Set("text", read(Page.Text))
	obj.Set("source", read(Page.Source))
	return obj
}

// SetPage attaches the document scripts read through the page object.
func (e *Engine) SetPage(p Page) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.page = p
}

// SetVars replaces the read-only vars object with a copy of vars.
func (e *Engine) SetVars(vars map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	obj := e.runtime.NewObject()
	for k, v := range vars {
		obj.Set(k, v)
	}
	e.runtime.Set("vars", obj)
}

// Output returns the values scripts stored on the output object.
func (e *Engine) Output() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make(map[string]string)
	for _, k := range e.output.Keys() {
		v := e.output.Get(k)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			result[k] = ""
			continue
		}
		result[k] = v.String()
	}
	return result
}

// Eval evaluates a JavaScript expression and returns the exported result
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	return result.Export(), nil
}

// EvalBool evaluates script and applies JavaScript truthiness to the result.
func (e *Engine) EvalBool(script string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return false, fmt.Errorf("JS eval error: %w", err)
	}
	return result.ToBoolean(), nil
}

// Run runs a script for its side effects
func (e *Engine) Run(script string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.runtime.RunString(script); err != nil {
		return fmt.Errorf("JS runtime error: %w", err)
	}
	return nil
}

// Close releases the page reference and idle HTTP connections.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.page = nil
	e.client.CloseIdleConnections()
}
