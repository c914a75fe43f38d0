package jsengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dop251/goja"
)

// httpModule returns the http object with get and post methods
func (e *Engine) httpModule() *goja.Object {
	obj := e.runtime.NewObject()

	// http.get(url, [options])
	obj.Set("get", func(call goja.FunctionCall) goja.Value {
		return e.doHTTPRequest(http.MethodGet, call)
	})

	// http.post(url, [options])
	obj.Set("post", func(call goja.FunctionCall) goja.Value {
		return e.doHTTPRequest(http.MethodPost, call)
	})

	return obj
}

// requestOptions is the optional second argument of http.get / http.post.
type requestOptions struct {
	body    io.Reader
	headers map[string]string
	timeout time.Duration
}

func (e *Engine) parseRequestOptions(arg goja.Value) requestOptions {
	opts := requestOptions{headers: make(map[string]string)}
	if arg == nil || goja.IsUndefined(arg) || goja.IsNull(arg) {
		return opts
	}

	m, ok := arg.Export().(map[string]interface{})
	if !ok {
		return opts
	}

	if h, ok := m["headers"].(map[string]interface{}); ok {
		for k, v := range h {
			opts.headers[k] = fmt.Sprintf("%v", v)
		}
	}

	switch b := m["body"].(type) {
	case string:
		opts.body = bytes.NewBufferString(b)
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(b)
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("cannot encode body: %v", err)))
		}
		opts.body = bytes.NewBuffer(data)
		if _, set := opts.headers["Content-Type"]; !set {
			opts.headers["Content-Type"] = "application/json"
		}
	}

	switch t := m["timeout"].(type) {
	case int64:
		opts.timeout = time.Duration(t) * time.Millisecond
	case float64:
		opts.timeout = time.Duration(t) * time.Millisecond
	}
	return opts
}

// doHTTPRequest performs an HTTP request and returns
// {status, ok, body, headers, json} to the script.
func (e *Engine) doHTTPRequest(method string, call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 1 {
		panic(e.runtime.NewTypeError(fmt.Sprintf("http.%s requires url", method)))
	}
	url := call.Arguments[0].String()
	opts := e.parseRequestOptions(call.Argument(1))

	req, err := http.NewRequest(method, url, opts.body)
	if err != nil {
		panic(e.runtime.NewGoError(fmt.Errorf("failed to create request: %w", err)))
	}
	for k, v := range opts.headers {
		req.Header.Set(k, v)
	}

	client := e.client
	if opts.timeout > 0 {
		client = &http.Client{Timeout: opts.timeout, Transport: e.client.Transport}
	}

	resp, err := client.Do(req)
	if err != nil {
		panic(e.runtime.NewGoError(fmt.Errorf("HTTP request failed: %w", err)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(e.runtime.NewGoError(fmt.Errorf("failed to read response: %w", err)))
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	result := e.runtime.NewObject()
	result.Set("status", resp.StatusCode)
	result.Set("ok", resp.StatusCode >= 200 && resp.StatusCode < 300)
	result.Set("body", string(body))
	result.Set("headers", headers)

	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		result.Set("json", parsed)
	} else {
		result.Set("json", goja.Null())
	}
	return result
}
