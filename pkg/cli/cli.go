// Package cli provides the command-line interface for webcheck-runner.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to workspace webcheck.yaml (default: ./webcheck.yaml if present)",
		EnvVars: []string{"WEBCHECK_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write the run log to this file",
		EnvVars: []string{"WEBCHECK_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Print debug logging to stderr",
		EnvVars: []string{"WEBCHECK_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "webcheck",
		Usage:   "Run declarative browser checks and report pass/fail",
		Version: Version,
		Description: `webcheck drives Chrome through JSON or YAML flows of actions
(navigate, type, click, wait, assert, screenshot, cookies, prompts and
OCR captcha solving) and writes a JSON report.

Examples:
  webcheck run suite.json
  webcheck run login.yaml --headless --var USER=alice
  webcheck run suite.json --stop-on-fail --output out/report.json
  webcheck validate flows/
  webcheck ocr recognize captcha.png --mode binary`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			if path := c.String("log-file"); path != "" {
				if err := logger.Init(path); err != nil {
					return err
				}
			}
			if c.Bool("verbose") {
				logger.InitWriter(os.Stderr, slog.LevelDebug)
			}
			return nil
		},
		After: func(*cli.Context) error {
			logger.Close()
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			validateCommand,
			ocrCommand,
		},
	}
}

// Execute runs the CLI. Commands report their exit status through
// cli.Exit; any other error exits 1.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
