// Package report builds the end-of-run report of a suite.
//
// Outputs:
//   - report.json: the run report, written once when the suite finishes
//   - an optional Prometheus textfile with per-flow exit codes and durations,
//     for node_exporter's textfile collector
//
// The JSON field names and status labels are consumed by existing tooling
// and must stay stable.
package report

// Report is the aggregate over all flows of one run.
type Report struct {
	RunID       string  `json:"run_id"`
	GeneratedAt string  `json:"generated_at"` // UTC, RFC 3339
	Total       int     `json:"total"`
	Summary     Summary `json:"summary"`
	Results     []Entry `json:"results"`
}

// Summary contains counts per classification bucket.
type Summary struct {
	Pass       int `json:"pass"`        // exit code 0
	ErrorFound int `json:"error_found"` // exit code 1
	Failures   int `json:"failures"`    // every other exit code
}

// Entry is the report record of one flow.
type Entry struct {
	Name       string `json:"name"`
	ExitCode   int    `json:"exit_code"`
	Status     string `json:"status"`
	Timeout    int    `json:"timeout"`
	Headless   bool   `json:"headless"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Failed returns the number of entries that did not pass.
func (r *Report) Failed() int {
	return r.Summary.ErrorFound + r.Summary.Failures
}
