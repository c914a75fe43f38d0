package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/driver/mock"
	"github.com/devicelab-dev/webcheck-runner/pkg/executor"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
	"github.com/devicelab-dev/webcheck-runner/pkg/prompt"
	"github.com/devicelab-dev/webcheck-runner/pkg/report"
	"github.com/devicelab-dev/webcheck-runner/pkg/validator"
)

func init() {
	colorsEnabled = false
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"USER=alice", "QUERY=a=b", " PASS =", "EMPTY="})
	if err != nil {
		t.Fatalf("parseVars() error = %v", err)
	}
	want := map[string]string{"USER": "alice", "QUERY": "a=b", "PASS": "", "EMPTY": ""}
	if len(vars) != len(want) {
		t.Fatalf("parseVars() = %v, want %v", vars, want)
	}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("vars[%q] = %q, want %q", k, vars[k], v)
		}
	}

	for _, bad := range []string{"NOEQUALS", "=value", "  =x"} {
		if _, err := parseVars([]string{bad}); err == nil {
			t.Errorf("parseVars(%q) expected error", bad)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0ms"},
		{999, "999ms"},
		{1000, "1.0s"},
		{1500, "1.5s"},
		{59999, "60.0s"},
		{60000, "1m 0s"},
		{125000, "2m 5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.ms); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestFormatStep(t *testing.T) {
	ok := formatStep(core.StepResult{Index: 2, Action: "click", Status: core.StatusPassed, Duration: 30 * time.Millisecond})
	if ok != "    ✓ 2. click (30ms)" {
		t.Errorf("passed step = %q", ok)
	}

	slow := formatStep(core.StepResult{Index: 1, Action: "goto", Status: core.StatusPassed, Duration: 6 * time.Second})
	if !strings.Contains(slow, "⚠") {
		t.Errorf("slow step should be marked: %q", slow)
	}
	sleep := formatStep(core.StepResult{Index: 1, Action: "sleep", Status: core.StatusPassed, Duration: 6 * time.Second})
	if strings.Contains(sleep, "⚠") {
		t.Errorf("sleep should not be marked slow: %q", sleep)
	}

	failed := formatStep(core.StepResult{Index: 3, Action: "assert_page_contains", Status: core.StatusFailed, Error: "text not found"})
	if !strings.Contains(failed, "✗ 3. assert_page_contains") || !strings.Contains(failed, "╰─ text not found") {
		t.Errorf("failed step = %q", failed)
	}
}

func TestExitCode(t *testing.T) {
	pass := core.Result{Classification: core.ClassPass}
	element := core.Result{Classification: core.ClassElement}
	session := core.Result{Classification: core.ClassSession}

	tests := []struct {
		name    string
		suite   *flow.Suite
		results []core.Result
		want    int
	}{
		{"single pass", &flow.Suite{Flows: make([]flow.Flow, 1), Single: true}, []core.Result{pass}, 0},
		{"single element", &flow.Suite{Flows: make([]flow.Flow, 1), Single: true}, []core.Result{element}, 2},
		{"single session", &flow.Suite{Flows: make([]flow.Flow, 1), Single: true}, []core.Result{session}, 3},
		{"batch all pass", &flow.Suite{Flows: make([]flow.Flow, 2)}, []core.Result{pass, pass}, 0},
		{"batch one failure", &flow.Suite{Flows: make([]flow.Flow, 2)}, []core.Result{pass, session}, 1},
		{"batch interrupted", &flow.Suite{Flows: make([]flow.Flow, 3)}, []core.Result{pass, pass}, 1},
		{"single interrupted", &flow.Suite{Flows: make([]flow.Flow, 1), Single: true}, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.suite, tt.results); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func loginPage() mock.Config {
	return mock.Config{
		PageText: "Please sign in",
		Elements: map[string]*mock.Element{
			"#user":   {},
			"#submit": {},
		},
		OnClick: func(s *mock.Session, selector string) {
			if selector == "#submit" {
				s.SetPageText("Welcome " + s.Typed("#user"))
			}
		},
	}
}

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write suite: %v", err)
	}
	return path
}

const singleFlow = `{
  "name": "login",
  "url": "https://example.com/login",
  "steps": [
    {"action": "goto", "url": "https://example.com/login"},
    {"action": "type", "selector": "#user", "text": "${USER}"},
    {"action": "click", "selector": "#submit"},
    {"action": "assert_page_contains", "text": "Welcome bob"}
  ]
}`

func TestRunSuite_SingleFlow(t *testing.T) {
	tests := []struct {
		user     string
		wantCode int
	}{
		{"bob", 0},
		{"alice", 1},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			output := filepath.Join(t.TempDir(), "out", "report.json")
			opts := RunOptions{
				SuitePath: writeSuite(t, singleFlow),
				Output:    output,
				Runner: executor.RunnerConfig{
					Launcher:  mock.New(loginPage()),
					Overrides: map[string]string{"USER": tt.user},
				},
			}

			code, err := runSuite(context.Background(), opts)
			if err != nil {
				t.Fatalf("runSuite() error = %v", err)
			}
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}

			rep, err := report.Read(output)
			if err != nil {
				t.Fatalf("read report: %v", err)
			}
			if rep.Total != 1 || len(rep.Results) != 1 {
				t.Fatalf("report total = %d, results = %d", rep.Total, len(rep.Results))
			}
			if rep.Results[0].Name != "login" || rep.Results[0].ExitCode != tt.wantCode {
				t.Errorf("entry = %+v", rep.Results[0])
			}
		})
	}
}

func TestRunSuite_BatchWithMetrics(t *testing.T) {
	suite := `[
  {"name": "ok", "steps": [{"action": "goto", "url": "https://example.com"}]},
  {"name": "missing", "steps": [{"action": "click", "selector": "#nope", "timeout": 1}]}
]`
	dir := t.TempDir()
	opts := RunOptions{
		SuitePath:   writeSuite(t, suite),
		Output:      filepath.Join(dir, "report.json"),
		MetricsFile: filepath.Join(dir, "webcheck.prom"),
		Runner:      executor.RunnerConfig{Launcher: mock.New(loginPage())},
	}

	code, err := runSuite(context.Background(), opts)
	if err != nil {
		t.Fatalf("runSuite() error = %v", err)
	}
	if code != 1 {
		t.Errorf("batch exit code = %d, want 1", code)
	}

	rep, err := report.Read(opts.Output)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if rep.Summary.Pass != 1 || rep.Summary.Failures != 1 {
		t.Errorf("summary = %+v", rep.Summary)
	}
	if rep.Results[1].ExitCode != int(core.ClassElement) {
		t.Errorf("missing element exit code = %d, want %d", rep.Results[1].ExitCode, core.ClassElement)
	}

	metrics, err := os.ReadFile(opts.MetricsFile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metrics), `webcheck_flow_exit_code{flow="missing"} 2`) {
		t.Errorf("metrics missing exit code for flow:\n%s", metrics)
	}
}

func TestRunSuite_LoadFailure(t *testing.T) {
	dir := t.TempDir()
	opts := RunOptions{
		SuitePath: filepath.Join(dir, "missing.json"),
		Output:    filepath.Join(dir, "report.json"),
		Runner:    executor.RunnerConfig{Launcher: mock.New(mock.Config{})},
	}

	code, err := runSuite(context.Background(), opts)
	if err == nil {
		t.Fatal("expected error for missing suite file")
	}
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if _, err := os.Stat(opts.Output); !os.IsNotExist(err) {
		t.Error("no report should be written when the suite does not load")
	}
}

func TestNewLauncher(t *testing.T) {
	for _, backend := range []string{"", "webdriver", "CDP"} {
		if _, err := newLauncher(backend, ""); err != nil {
			t.Errorf("newLauncher(%q) error = %v", backend, err)
		}
	}
	if _, err := newLauncher("selenium-grid", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := parseMode("Binary"); err != nil || m != "binary" {
		t.Errorf("parseMode(Binary) = %q, %v", m, err)
	}
	if _, err := parseMode("sharpen"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestPrintValidation(t *testing.T) {
	var buf bytes.Buffer
	valid := &validator.Result{Files: []string{"a.json"}, Warnings: []string{"duplicate flow name"}}
	if !printValidation(&buf, []*validator.Result{valid}) {
		t.Error("expected valid")
	}
	if !strings.Contains(buf.String(), "1 file(s), 0 flow(s) valid, 1 warning(s)") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	invalid := &validator.Result{
		Files:  []string{"b.json"},
		Errors: []error{&validator.ValidationError{File: "b.json", Flow: "login", Step: 2, Message: "Unsupported action: hover"}},
	}
	if printValidation(&buf, []*validator.Result{valid, invalid}) {
		t.Error("expected invalid")
	}
	out := buf.String()
	if !strings.Contains(out, "b.json: login: step 2: Unsupported action: hover") {
		t.Errorf("missing error line: %q", out)
	}
	if !strings.Contains(out, "Validation failed: 1 error(s), 1 warning(s)") {
		t.Errorf("missing totals: %q", out)
	}
}

func TestValidateCommand(t *testing.T) {
	path := writeSuite(t, singleFlow)

	var buf bytes.Buffer
	app := NewApp()
	app.Writer = &buf
	if err := app.Run([]string{"webcheck", "validate", path}); err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(buf.String(), "1 file(s), 1 flow(s) valid") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFlowColumn(t *testing.T) {
	short := flowColumn("login")
	if len(short) != flowColumnWidth || !strings.HasPrefix(short, "login ") {
		t.Errorf("flowColumn(login) = %q", short)
	}

	long := flowColumn(strings.Repeat("a", 60))
	if len(long) != flowColumnWidth || !strings.HasSuffix(long, "...") {
		t.Errorf("long name = %q", long)
	}

	// Each CJK rune takes two cells.
	cjk := flowColumn("验证码登录")
	if !strings.HasPrefix(cjk, "验证码登录") || strings.Count(cjk, " ") != flowColumnWidth-10 {
		t.Errorf("cjk name = %q", cjk)
	}
}

func TestTerminalInput(t *testing.T) {
	tty := prompt.NewReader(strings.NewReader("yes\n"), &bytes.Buffer{})
	if got := terminalInput(tty); got != prompt.Input(tty) {
		t.Errorf("Expected the terminal itself, got %T", got)
	}

	got := terminalInput(&prompt.Terminal{})
	if _, ok := got.(prompt.None); !ok {
		t.Errorf("Expected prompt.None without a terminal, got %T", got)
	}
}

func TestSkippedSteps(t *testing.T) {
	r := core.Result{Steps: []core.StepResult{
		{Index: 1, Status: core.StatusPassed},
		{Index: 2, Status: core.StatusFailed},
		{Index: 3, Status: core.StatusSkipped},
		{Index: 4, Status: core.StatusSkipped},
	}}
	if got := skippedSteps(r); got != 2 {
		t.Errorf("Expected 2 skipped steps, got %d", got)
	}
	if got := skippedSteps(core.Result{}); got != 0 {
		t.Errorf("Expected 0 skipped steps, got %d", got)
	}
}
