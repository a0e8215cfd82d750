// Package metrics records workflow run outcomes as Prometheus metrics.
//
// Collector implements workflow.Observer. It is registered on its own
// registry so a CLI invocation can dump the counters to a node_exporter
// textfile without touching the global default registry.
//
// Instruments:
//   - docflow_runs_started_total (counter): runs that entered submitting
//   - docflow_runs_finished_total (counter): terminal runs, by state and error kind
//   - docflow_run_duration_seconds (histogram): time from start to terminal state, by state
//   - docflow_runs_in_flight (gauge): runs started but not yet terminal
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Backland-Labs/docflow/internal/logger"
	"github.com/Backland-Labs/docflow/internal/workflow"
)

const namespace = "docflow"

// Collector observes run transitions and keeps the docflow instruments
type Collector struct {
	registry *prometheus.Registry
	started  prometheus.Counter
	finished *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// New creates a Collector with a fresh registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of runs that were submitted.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Total number of runs that reached a terminal state.",
		}, []string{"state", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of runs from submission to terminal state.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 900},
		}, []string{"state"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Number of runs that have not reached a terminal state.",
		}),
	}
	c.registry.MustRegister(c.started, c.finished, c.duration, c.inFlight)
	return c
}

// Registry exposes the registry backing the collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RunTransitioned implements workflow.Observer
func (c *Collector) RunTransitioned(snap workflow.Snapshot) {
	switch {
	case snap.State == workflow.StateSubmitting:
		c.started.Inc()
		c.inFlight.Inc()
	case snap.State.Terminal():
		kind := "none"
		if snap.Error != nil {
			kind = string(snap.Error.Kind)
		}
		c.finished.WithLabelValues(string(snap.State), kind).Inc()
		c.duration.WithLabelValues(string(snap.State)).Observe(snap.Duration().Seconds())
		c.inFlight.Dec()
	}
}

// WriteTextfile writes the current metrics in the text exposition format,
// suitable for the node_exporter textfile collector
func (c *Collector) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	logger.WithField("path", path).Debug("Wrote metrics textfile")
	return nil
}
