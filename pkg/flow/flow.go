// Package flow handles parsing and representation of webcheck flow and suite files.
package flow

// Flow is one ordered script of actions run against one browser session.
type Flow struct {
	Name       string            // Defaulted to flow_<n> / case_<n> by the loader
	URL        string            // Entry URL, recorded for legacy login cases
	Steps      []Action          // Actions in declared order
	Variables  map[string]string // Initial variable mapping
	Timeout    *int              // Per-step wait timeout in seconds
	Headless   *bool             // Run the browser headless
	DriverPath string            // Browser driver (or browser binary) override
	Legacy     bool              // Converted from a legacy login case
}

// Suite is an ordered collection of flows plus shared defaults.
type Suite struct {
	SourcePath string
	Flows      []Flow

	// Shared defaults, applied when a flow leaves the knob unset
	Timeout    *int
	Headless   *bool
	DriverPath string
	Variables  map[string]string

	// Single is true when the document was a single flow object. A single
	// flow run exits with the flow's classification instead of 0/1.
	Single bool
}
