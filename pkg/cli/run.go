package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/webcheck-runner/pkg/config"
	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/driver/cdp"
	"github.com/devicelab-dev/webcheck-runner/pkg/driver/webdriver"
	"github.com/devicelab-dev/webcheck-runner/pkg/executor"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
	"github.com/devicelab-dev/webcheck-runner/pkg/ocr"
	"github.com/devicelab-dev/webcheck-runner/pkg/prompt"
	"github.com/devicelab-dev/webcheck-runner/pkg/report"
)

// DefaultOutput is the report path when neither flag nor config sets one.
const DefaultOutput = "webcheck_results.json"

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run a suite of browser flows",
	ArgsUsage: "<suite.json|suite.yaml>",
	Description: `Run every flow of a suite in order and write a JSON report.

A suite file may hold a single flow ({"steps": [...]}), a bare array of
flows, an object with "flows" and shared defaults, or legacy login cases.

Exit status:
  single-flow file: the flow's classification (0 pass, 1 assertion,
                    2 element/timeout, 3 webdriver, 4 unexpected)
  batch:            1 if any flow did not pass, else 0
  load failure:     1

Examples:
  webcheck run suite.json
  webcheck run suite.json --headless --default-timeout 30
  webcheck run login.json --var USER=alice --var PASS=secret
  webcheck run suite.json --backend cdp --metrics-file /var/lib/node_exporter/webcheck.prom`,
	Flags: []cli.Flag{
		// Output
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Path of the JSON report",
			Value:   DefaultOutput,
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Also write Prometheus textfile metrics to this path",
		},

		// Browser defaults (a flow or the suite can override them)
		&cli.BoolFlag{
			Name:  "headless",
			Usage: "Run headless when a flow does not say otherwise",
		},
		&cli.IntFlag{
			Name:  "default-timeout",
			Usage: "Element wait in seconds when a flow does not set one",
			Value: executor.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "driver-path",
			Aliases: []string{"chromedriver-path"},
			Usage:   "chromedriver executable (webdriver) or Chrome executable (cdp)",
			EnvVars: []string{"CHROMEDRIVER"},
		},
		&cli.StringFlag{
			Name:    "backend",
			Usage:   "Session backend: webdriver or cdp",
			Value:   config.BackendWebDriver,
			EnvVars: []string{"WEBCHECK_BACKEND"},
		},
		&cli.StringFlag{
			Name:    "webdriver-url",
			Usage:   "Use a running WebDriver server (webdriver) or DevTools endpoint (cdp) instead of launching one",
			EnvVars: []string{"WEBDRIVER_URL"},
		},

		// Execution
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Stop after the first flow that does not pass",
		},
		&cli.StringSliceFlag{
			Name:    "var",
			Aliases: []string{"e"},
			Usage:   "Flow variable KEY=VALUE, overrides suite and flow variables",
		},
		&cli.BoolFlag{
			Name:  "no-interactive",
			Usage: "Never wait for terminal input (wait_user sleeps, prompt reads empty)",
		},

		// Captcha
		&cli.StringFlag{
			Name:  "captcha-policy",
			Usage: "What solve_captcha does when attempts run out: continue or fail",
		},
		&cli.StringFlag{
			Name:    "tesseract",
			Usage:   "tesseract executable",
			EnvVars: []string{"TESSERACT"},
		},
		&cli.StringFlag{
			Name:  "ocr-lang",
			Usage: "tesseract language (default eng)",
		},
	},
	Action: runAction,
}

// RunOptions is everything one run needs after flags and config are merged.
type RunOptions struct {
	SuitePath   string
	Output      string
	MetricsFile string
	Runner      executor.RunnerConfig
}

func runAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one suite file is required", 1)
	}

	cfg, err := loadWorkspaceConfig(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load config: %v", err), 1)
	}

	opts, err := buildRunOptions(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := runSuite(ctx, opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	if code != 0 {
		return cli.Exit("", code)
	}
	return nil
}

// loadWorkspaceConfig loads an explicit config file, else webcheck.yaml
// from the working directory when present.
func loadWorkspaceConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromDir(".")
}

// buildRunOptions merges flags with the workspace config. A flag given on
// the command line wins over the config file, which wins over the flag default.
func buildRunOptions(c *cli.Context, cfg *config.Config) (RunOptions, error) {
	opts := RunOptions{
		SuitePath:   c.Args().First(),
		Output:      pickString(c, "output", cfg.Output),
		MetricsFile: pickString(c, "metrics-file", cfg.MetricsFile),
	}

	overrides, err := parseVars(c.StringSlice("var"))
	if err != nil {
		return opts, err
	}

	timeout := c.Int("default-timeout")
	if !c.IsSet("default-timeout") && cfg.Timeout != nil {
		timeout = *cfg.Timeout
	}
	if timeout <= 0 {
		return opts, fmt.Errorf("--default-timeout must be positive, got %d", timeout)
	}

	var headless *bool
	switch {
	case c.IsSet("headless"):
		h := c.Bool("headless")
		headless = &h
	case cfg.Headless != nil:
		headless = cfg.Headless
	}

	stopOnFail := c.Bool("stop-on-fail")
	if !c.IsSet("stop-on-fail") && cfg.StopOnFail != nil {
		stopOnFail = *cfg.StopOnFail
	}

	launcher, err := newLauncher(pickString(c, "backend", cfg.Backend), pickString(c, "webdriver-url", cfg.WebDriverURL))
	if err != nil {
		return opts, err
	}

	solver, err := newSolver(cfg, pickString(c, "tesseract", cfg.OCR.Tesseract), pickString(c, "ocr-lang", cfg.OCR.Lang))
	if err != nil {
		return opts, err
	}

	policy, err := ocr.ParsePolicy(pickString(c, "captcha-policy", cfg.Captcha.Policy))
	if err != nil {
		return opts, err
	}

	var input prompt.Input = prompt.None{}
	if !c.Bool("no-interactive") {
		input = terminalInput(prompt.NewTerminal())
	}

	opts.Runner = executor.RunnerConfig{
		Launcher:       launcher,
		Timeout:        &timeout,
		Headless:       headless,
		DriverPath:     pickString(c, "driver-path", cfg.DriverPath),
		StopOnFail:     stopOnFail,
		Vars:           cfg.Vars,
		Overrides:      overrides,
		Solver:         solver,
		Input:          input,
		CaptchaPolicy:  policy,
		OnFlowStart:    onFlowStart,
		OnStepComplete: onStepComplete,
		OnFlowEnd:      onFlowEnd,
	}
	return opts, nil
}

// terminalInput returns t when stdin can answer prompts. Otherwise
// wait_user steps only sleep and prompt steps store "".
func terminalInput(t *prompt.Terminal) prompt.Input {
	if t.Interactive() {
		return t
	}
	logger.Info("stdin is not a terminal: wait_user will only sleep, prompt will store empty values")
	return prompt.None{}
}

// pickString returns the flag when set on the command line, else the
// config value, else the flag default.
func pickString(c *cli.Context, flag, configured string) string {
	if c.IsSet(flag) || configured == "" {
		return c.String(flag)
	}
	return configured
}

func newLauncher(backend, remoteURL string) (core.Launcher, error) {
	switch strings.ToLower(backend) {
	case "", config.BackendWebDriver:
		return webdriver.NewLauncher(remoteURL), nil
	case config.BackendCDP:
		return cdp.NewLauncher(remoteURL), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", backend, config.BackendWebDriver, config.BackendCDP)
	}
}

// newSolver builds the captcha solver. A missing tesseract binary is not an
// error here; OCR actions report it when they run.
func newSolver(cfg *config.Config, tesseract, lang string) (*ocr.Solver, error) {
	matcher, err := ocr.NewInvalidMatcher(cfg.Captcha.InvalidAll, cfg.Captcha.InvalidAny, cfg.Captcha.InvalidPattern)
	if err != nil {
		return nil, err
	}

	engine := ocr.NewTesseract(tesseract, lang)
	if err := engine.Available(); err != nil {
		logger.Warn("OCR disabled: %v", err)
	}

	solver := ocr.NewSolver(engine, matcher)
	if cfg.Captcha.SettleMs != nil {
		solver.SettleDelay = time.Duration(*cfg.Captcha.SettleMs) * time.Millisecond
	}
	return solver, nil
}

// parseVars parses KEY=VALUE pairs. The value may contain '='.
func parseVars(pairs []string) (map[string]string, error) {
	result := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --var %q, want KEY=VALUE", p)
		}
		result[strings.TrimSpace(key)] = value
	}
	return result, nil
}

// runSuite loads and runs the suite, writes the report and returns the
// process exit status. An error means the suite never ran or its report
// could not be written.
func runSuite(ctx context.Context, opts RunOptions) (int, error) {
	suite, err := flow.ParseFile(opts.SuitePath)
	if err != nil {
		return 1, err
	}
	logger.Info("loaded %s: %d flows", opts.SuitePath, len(suite.Flows))

	start := time.Now()
	results := executor.New(opts.Runner).Run(ctx, *suite)
	finished := time.Now()

	rep := report.Build(results, finished)
	output := opts.Output
	if output == "" {
		output = DefaultOutput
	}
	if err := report.Write(output, rep); err != nil {
		return 1, err
	}

	if opts.MetricsFile != "" {
		if err := report.WriteMetrics(opts.MetricsFile, results, finished); err != nil {
			logger.Error("%v", err)
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	printSummary(rep, len(suite.Flows), finished.Sub(start))
	fmt.Printf("  Report: %s\n\n", output)

	return exitCode(suite, results), nil
}

// exitCode is the flow's classification for a single-flow document, else
// 1 when any flow did not pass.
func exitCode(suite *flow.Suite, results []core.Result) int {
	if suite.Single && len(results) == 1 {
		return int(results[0].Classification)
	}
	for _, r := range results {
		if !r.Passed() {
			return 1
		}
	}
	if len(results) < len(suite.Flows) {
		// interrupted before every flow ran
		return 1
	}
	return 0
}
