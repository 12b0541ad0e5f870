package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/gate"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
)

const namespace = "covergate"

// Exporter holds coverage gauges of the latest build on its own registry.
type Exporter struct {
	registry *prometheus.Registry
	value    *prometheus.GaugeVec
	covered  *prometheus.GaugeVec
	missed   *prometheus.GaugeVec
	gate     *prometheus.GaugeVec
	build    prometheus.Gauge
}

// NewExporter creates an exporter with a fresh registry.
func NewExporter() *Exporter {
	labels := []string{"baseline", "metric"}

	e := &Exporter{
		registry: prometheus.NewRegistry(),
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "value",
			Help:      "Coverage percentage, integer metric or delta per baseline and metric.",
		}, labels),
		covered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "covered_items",
			Help:      "Covered items per baseline and coverage metric.",
		}, labels),
		missed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "missed_items",
			Help:      "Missed items per baseline and coverage metric.",
		}, labels),
		gate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gate_status",
			Help:      "Quality gate status: 1 for the current status of the evaluation, 0 otherwise.",
		}, []string{"status"}),
		build: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_number",
			Help:      "Number of the build the gauges describe.",
		}),
	}

	e.registry.MustRegister(e.value, e.covered, e.missed, e.gate, e.build)

	return e
}

// Registry returns the registry holding the gauges.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Observe replaces the gauges with the statistics of a build. Nil statistics
// or a nil result leave the respective gauges unset.
func (e *Exporter) Observe(build int, s *stats.Statistics, result *gate.Result) {
	e.value.Reset()
	e.covered.Reset()
	e.missed.Reset()
	e.gate.Reset()

	e.build.Set(float64(build))

	if s == nil {
		s = stats.New(nil)
	}

	for _, baseline := range s.Baselines() {
		for _, v := range s.Values(baseline) {
			labels := prometheus.Labels{"baseline": baseline.Tag(), "metric": v.Metric().Tag()}

			if scalar, ok := v.Scalar(); ok {
				e.value.With(labels).Set(scalar)
			}

			if v.Kind() == coverage.KindCoverage {
				e.covered.With(labels).Set(float64(v.Covered()))
				e.missed.With(labels).Set(float64(v.Missed()))
			}
		}
	}

	if result == nil {
		return
	}

	for _, status := range []gate.Status{gate.Inactive, gate.Passed, gate.Warning, gate.Failed} {
		current := 0.0
		if status == result.Status {
			current = 1
		}

		e.gate.WithLabelValues(status.String()).Set(current)
	}
}

// WriteTextfile writes the gauges in the node exporter textfile format.
func (e *Exporter) WriteTextfile(path string) error {
	err := prometheus.WriteToTextfile(path, e.registry)
	if err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}
