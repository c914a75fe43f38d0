package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/webcheck-runner/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check suite files without opening a browser",
	ArgsUsage: "<suite-file|dir>...",
	Description: `Parse every suite and report unknown actions, missing required
fields, bad selectors and invalid option values. Directories are scanned for
.json, .yaml and .yml files. Exits 1 when any error is found.`,
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.Exit("at least one suite file or directory is required", 1)
		}

		v := validator.New()
		var results []*validator.Result
		for _, path := range c.Args().Slice() {
			results = append(results, v.Validate(path))
		}

		if !printValidation(c.App.Writer, results) {
			return cli.Exit("", 1)
		}
		return nil
	},
}

// printValidation prints every error and warning and reports whether all
// results are valid.
func printValidation(w io.Writer, results []*validator.Result) bool {
	files, flows, errCount, warnCount := 0, 0, 0, 0
	for _, r := range results {
		files += len(r.Files)
		flows += r.FlowCount()
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  %s✗%s %v\n", color(colorRed), color(colorReset), err)
			errCount++
		}
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "  %s⚠%s %s\n", color(colorYellow), color(colorReset), warning)
			warnCount++
		}
	}

	if errCount > 0 {
		fmt.Fprintf(w, "\n%sValidation failed:%s %d error(s), %d warning(s)\n",
			color(colorRed), color(colorReset), errCount, warnCount)
		return false
	}
	fmt.Fprintf(w, "%s✓%s %d file(s), %d flow(s) valid", color(colorGreen), color(colorReset), files, flows)
	if warnCount > 0 {
		fmt.Fprintf(w, ", %d warning(s)", warnCount)
	}
	fmt.Fprintln(w)
	return true
}
