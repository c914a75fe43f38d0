package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
)

const namespace = "webcheck"

var classifications = []core.Classification{
	core.ClassPass,
	core.ClassAssertion,
	core.ClassElement,
	core.ClassSession,
	core.ClassUnexpected,
}

// Metrics holds the gauges of one run in a private registry.
type Metrics struct {
	registry *prometheus.Registry

	exitCode *prometheus.GaugeVec
	duration *prometheus.GaugeVec
	flows    *prometheus.GaugeVec
	lastRun  prometheus.Gauge
}

// NewMetrics creates the run gauges.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		exitCode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flow_exit_code",
			Help:      "Classification of the flow in the last run (0 = pass).",
		}, []string{"flow"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flow_duration_seconds",
			Help:      "Wall time of the flow in the last run.",
		}, []string{"flow"}),
		flows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flows_total",
			Help:      "Number of flows in the last run by status label.",
		}, []string{"status"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	m.registry.MustRegister(m.exitCode, m.duration, m.flows, m.lastRun)

	for _, c := range classifications {
		m.flows.WithLabelValues(c.Label()).Set(0)
	}
	return m
}

// Observe records results. Flows sharing a name keep the last value.
func (m *Metrics) Observe(results []core.Result, finished time.Time) {
	for _, res := range results {
		m.exitCode.WithLabelValues(res.Name).Set(float64(res.Classification))
		m.duration.WithLabelValues(res.Name).Set(res.Duration.Seconds())
		m.flows.WithLabelValues(res.Classification.Label()).Inc()
	}
	m.lastRun.Set(float64(finished.Unix()))
}

// Gatherer exposes the registry, e.g. for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

// WriteMetrics writes a textfile for results at path.
func WriteMetrics(path string, results []core.Result, finished time.Time) error {
	m := NewMetrics()
	m.Observe(results, finished)
	return m.WriteTextfile(path)
}
