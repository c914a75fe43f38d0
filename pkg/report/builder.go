package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
)

// Build creates the report for results, in run order.
func Build(results []core.Result, now time.Time) *Report {
	r := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Total:       len(results),
		Results:     make([]Entry, 0, len(results)),
	}

	for _, res := range results {
		switch res.Classification {
		case core.ClassPass:
			r.Summary.Pass++
		case core.ClassAssertion:
			r.Summary.ErrorFound++
		default:
			r.Summary.Failures++
		}
		r.Results = append(r.Results, entryFor(res))
	}
	return r
}

func entryFor(res core.Result) Entry {
	return Entry{
		Name:       res.Name,
		ExitCode:   int(res.Classification),
		Status:     res.Classification.Label(),
		Timeout:    res.Timeout,
		Headless:   res.Headless,
		URL:        res.URL,
		Error:      res.Error,
		DurationMs: res.Duration.Milliseconds(),
	}
}
