package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError represents a suite loading error with location info.
type ParseError struct {
	Path    string
	Index   int // 1-based flow index, 0 when the error is not flow specific
	Message string
}

func (e *ParseError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s: flow %d: %s", e.Path, e.Index, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// rawFlow is the on-disk shape of a flow, including the legacy login case.
type rawFlow struct {
	Name             string                 `json:"name"`
	Steps            json.RawMessage        `json:"steps"`
	Variables        map[string]interface{} `json:"variables"`
	Timeout          *int                   `json:"timeout"`
	Headless         *bool                  `json:"headless"`
	DriverPath       string                 `json:"driver_path"`
	ChromedriverPath string                 `json:"chromedriver_path"`

	URL                    string `json:"url"`
	Username               string `json:"username"`
	Password               string `json:"password"`
	UsernameSelector       string `json:"username_selector"`
	PasswordSelector       string `json:"password_selector"`
	SubmitSelector         string `json:"submit_selector"`
	FeatureSelector        string `json:"feature_selector"`
	AfterLoginWaitSelector string `json:"after_login_wait_selector"`
	PostClickWaitSelector  string `json:"post_click_wait_selector"`
}

type rawSuite struct {
	Flows            json.RawMessage        `json:"flows"`
	Variables        map[string]interface{} `json:"variables"`
	Timeout          *int                   `json:"timeout"`
	Headless         *bool                  `json:"headless"`
	DriverPath       string                 `json:"driver_path"`
	ChromedriverPath string                 `json:"chromedriver_path"`
}

// ParseFile loads a suite from a JSON or YAML file.
func ParseFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided suite file
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data, path)
	default:
		return Parse(data, path)
	}
}

// ParseYAML loads a suite from YAML content. The document has the same
// shape as the JSON form.
func ParseYAML(data []byte, sourcePath string) (*Suite, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if doc == nil {
		return nil, &ParseError{Path: sourcePath, Message: "empty suite file"}
	}
	converted, err := json.Marshal(doc)
	if err != nil {
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("unsupported YAML structure: %v", err)}
	}
	return Parse(converted, sourcePath)
}

// Parse loads a suite from JSON content. Accepted forms:
//   - a single flow object with a "steps" array
//   - a bare array of flows
//   - an object with a "flows" array and shared defaults
//
// A flow without "steps" but with "url" is a legacy login case.
func Parse(data []byte, sourcePath string) (*Suite, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &ParseError{Path: sourcePath, Message: "empty suite file"}
	}

	suite := &Suite{SourcePath: sourcePath}

	switch trimmed[0] {
	case '[':
		if err := parseFlows(trimmed, suite); err != nil {
			return nil, err
		}
		return suite, nil

	case '{':
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &keys); err != nil {
			return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid JSON: %v", err)}
		}
		if flows, ok := keys["flows"]; ok {
			if !isArray(flows) {
				return nil, &ParseError{Path: sourcePath, Message: "suite object must contain a 'flows' array"}
			}
			if err := parseSuiteObject(trimmed, suite); err != nil {
				return nil, err
			}
			return suite, nil
		}

		var raw rawFlow
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid flow: %v", err)}
		}
		f, err := buildFlow(raw, 1, sourcePath)
		if err != nil {
			return nil, err
		}
		suite.Single = true
		suite.Flows = []Flow{f}
		return suite, nil

	default:
		return nil, &ParseError{
			Path:    sourcePath,
			Message: "suite must be an array of flows or an object with a 'flows' array",
		}
	}
}

func parseSuiteObject(data []byte, suite *Suite) error {
	var raw rawSuite
	if err := json.Unmarshal(data, &raw); err != nil {
		return &ParseError{Path: suite.SourcePath, Message: fmt.Sprintf("invalid suite: %v", err)}
	}

	suite.Timeout = raw.Timeout
	suite.Headless = raw.Headless
	suite.DriverPath = firstNonEmpty(raw.DriverPath, raw.ChromedriverPath)
	suite.Variables = stringifyMap(raw.Variables)

	return parseFlows(raw.Flows, suite)
}

func parseFlows(data []byte, suite *Suite) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return &ParseError{Path: suite.SourcePath, Message: fmt.Sprintf("invalid flows array: %v", err)}
	}

	for i, item := range items {
		index := i + 1
		var raw rawFlow
		if err := json.Unmarshal(item, &raw); err != nil {
			return &ParseError{Path: suite.SourcePath, Index: index, Message: fmt.Sprintf("invalid flow: %v", err)}
		}
		f, err := buildFlow(raw, index, suite.SourcePath)
		if err != nil {
			return err
		}
		suite.Flows = append(suite.Flows, f)
	}
	return nil
}

func buildFlow(raw rawFlow, index int, sourcePath string) (Flow, error) {
	f := Flow{
		Name:       raw.Name,
		URL:        raw.URL,
		Variables:  stringifyMap(raw.Variables),
		Timeout:    raw.Timeout,
		Headless:   raw.Headless,
		DriverPath: firstNonEmpty(raw.DriverPath, raw.ChromedriverPath),
	}

	if len(raw.Steps) == 0 || string(raw.Steps) == "null" {
		if raw.URL == "" {
			return Flow{}, &ParseError{Path: sourcePath, Index: index, Message: "flow must contain a 'steps' array"}
		}
		steps, err := legacySteps(raw)
		if err != nil {
			return Flow{}, &ParseError{Path: sourcePath, Index: index, Message: err.Error()}
		}
		f.Steps = steps
		f.Legacy = true
	} else {
		if !isArray(raw.Steps) {
			return Flow{}, &ParseError{Path: sourcePath, Index: index, Message: "'steps' must be an array"}
		}
		if err := json.Unmarshal(raw.Steps, &f.Steps); err != nil {
			return Flow{}, &ParseError{Path: sourcePath, Index: index, Message: fmt.Sprintf("invalid steps: %v", err)}
		}
	}

	for i := range f.Steps {
		f.Steps[i].Index = i + 1
	}

	if f.Name == "" {
		if f.Legacy {
			f.Name = fmt.Sprintf("case_%d", index)
		} else {
			f.Name = fmt.Sprintf("flow_%d", index)
		}
	}
	return f, nil
}

// legacySteps converts a login case into the equivalent action list:
// open the page, fill credentials, submit, optionally open a feature, and
// finally scan the page for the error keyword.
func legacySteps(raw rawFlow) ([]Action, error) {
	required := []struct {
		field string
		value string
	}{
		{"username", raw.Username},
		{"password", raw.Password},
		{"username_selector", raw.UsernameSelector},
		{"password_selector", raw.PasswordSelector},
		{"submit_selector", raw.SubmitSelector},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("login case requires '%s'", r.field)
		}
	}

	steps := []Action{
		{Kind: ActionGoto, URL: raw.URL},
		{Kind: ActionType, Selector: raw.UsernameSelector, Text: raw.Username},
		{Kind: ActionType, Selector: raw.PasswordSelector, Text: raw.Password},
		{Kind: ActionClick, Selector: raw.SubmitSelector},
	}
	if raw.AfterLoginWaitSelector != "" {
		steps = append(steps, Action{Kind: ActionWaitPresence, Selector: raw.AfterLoginWaitSelector})
	}
	if raw.FeatureSelector != "" {
		steps = append(steps, Action{Kind: ActionClick, Selector: raw.FeatureSelector})
	}
	if raw.PostClickWaitSelector != "" {
		steps = append(steps, Action{Kind: ActionWaitPresence, Selector: raw.PostClickWaitSelector})
	}
	steps = append(steps, Action{Kind: ActionCheckErrorKeyword})
	return steps, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func stringifyMap(in map[string]interface{}) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = stringify(v)
	}
	return out
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
