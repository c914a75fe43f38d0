package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/report"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Steps at or above this are marked slow.
const slowThreshold = 5 * time.Second

const flowColumnWidth = 42

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// Live progress callbacks

func onFlowStart(flowIdx, totalFlows int, name string) {
	fmt.Printf("\n  %s[%d/%d]%s %s%s%s\n",
		color(colorCyan), flowIdx+1, totalFlows, color(colorReset),
		color(colorBold), name, color(colorReset))
	fmt.Println(strings.Repeat("─", 60))
}

func onStepComplete(step core.StepResult) {
	fmt.Println(formatStep(step))
}

func formatStep(step core.StepResult) string {
	desc := fmt.Sprintf("%d. %s", step.Index, step.Action)
	if step.Message != "" {
		desc += ": " + step.Message
	}
	durStr := formatDuration(step.Duration.Milliseconds())

	switch step.Status {
	case core.StatusPassed:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if step.Duration >= slowThreshold && step.Action != "sleep" && step.Action != "wait_user" {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		return fmt.Sprintf("    %s%s%s %s %s(%s)%s",
			symbolColor, symbol, color(colorReset), desc, durColor, durStr, color(colorReset))
	default:
		line := fmt.Sprintf("    %s✗%s %s (%s)", color(colorRed), color(colorReset), desc, durStr)
		if step.Error != "" {
			line += fmt.Sprintf("\n      %s╰─%s %s", color(colorGray), color(colorReset), step.Error)
		}
		return line
	}
}

func onFlowEnd(r core.Result) {
	symbol, symbolColor := "✓", color(colorGreen)
	if !r.Passed() {
		symbol, symbolColor = "✗", color(colorRed)
	}
	fmt.Printf("%s%s %s%s %s%s %s%s\n",
		symbolColor, symbol, color(colorReset), r.Name,
		color(colorGray), r.Classification.Label(), formatDuration(r.Duration.Milliseconds()), color(colorReset))
	if r.Error != "" && !r.Passed() {
		fmt.Printf("  %s╰─%s %s\n", color(colorGray), color(colorReset), r.Error)
	}
	if n := skippedSteps(r); n > 0 {
		fmt.Printf("  %s%d steps skipped%s\n", color(colorCyan), n, color(colorReset))
	}
}

func skippedSteps(r core.Result) int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == core.StatusSkipped {
			n++
		}
	}
	return n
}

// printSummary prints the per-flow table. planned is the number of flows in
// the suite; fewer entries means the run stopped early.
func printSummary(rep *report.Report, planned int, elapsed time.Duration) {
	fmt.Println()
	if rep.Summary.Pass > 0 {
		fmt.Printf("  %s%d flows passing%s (%s)\n", color(colorGreen), rep.Summary.Pass, color(colorReset), formatDuration(elapsed.Milliseconds()))
	}
	if rep.Failed() > 0 {
		fmt.Printf("  %s%d flows failing%s\n", color(colorRed), rep.Failed(), color(colorReset))
	}
	if skipped := planned - rep.Total; skipped > 0 {
		fmt.Printf("  %s%d flows not run%s\n", color(colorCyan), skipped, color(colorReset))
	}
	fmt.Println()

	tableWidth := 92
	fmt.Println(strings.Repeat("═", tableWidth))
	fmt.Printf("  %-42s %6s  %-34s %10s\n", "Flow", "Exit", "Status", "Duration")
	fmt.Println(strings.Repeat("─", tableWidth))

	for _, e := range rep.Results {
		statusColor := color(colorGreen)
		if e.ExitCode != 0 {
			statusColor = color(colorRed)
		}

		fmt.Printf("  %s %6d  %s%-34s%s %10s\n",
			flowColumn(e.Name), e.ExitCode, statusColor, e.Status, color(colorReset), formatDuration(e.DurationMs))
	}

	fmt.Println(strings.Repeat("─", tableWidth))
	statusColor := color(colorGreen)
	if rep.Failed() > 0 {
		statusColor = color(colorRed)
	}
	fmt.Printf("  %s%-42s%s %s%6s%s  %-34s %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, fmt.Sprintf("%d/%d", rep.Summary.Pass, rep.Total), color(colorReset),
		"", formatDuration(elapsed.Milliseconds()))
	fmt.Println(strings.Repeat("═", tableWidth))
}

// flowColumn truncates and pads a flow name to the table's first column.
// Widths are terminal cells so CJK names stay aligned.
func flowColumn(name string) string {
	return runewidth.FillRight(runewidth.Truncate(name, flowColumnWidth, "..."), flowColumnWidth)
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
