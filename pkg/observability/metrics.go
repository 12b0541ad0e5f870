package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricReportsParsed   = "covergate.reports.parsed.total"
	metricParseDuration   = "covergate.report.parse.duration.seconds"
	metricGateEvaluations = "covergate.gate.evaluations.total"
	metricRecordInflight  = "covergate.record.inflight"

	attrFormat = "format"
	attrStatus = "status"
)

// parseBuckets covers 1ms to 60s: small profiles up to large aggregated XML reports.
var parseBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// RecordMetrics holds the instruments of the record and gate commands.
// A nil *RecordMetrics records nothing.
type RecordMetrics struct {
	reportsParsed   metric.Int64Counter
	parseDuration   metric.Float64Histogram
	gateEvaluations metric.Int64Counter
	inflight        metric.Int64UpDownCounter
}

// NewRecordMetrics creates the instruments from mt.
func NewRecordMetrics(mt metric.Meter) (*RecordMetrics, error) {
	b := &instrumentBuilder{meter: mt}

	rm := &RecordMetrics{
		reportsParsed:   b.counter(metricReportsParsed, "Coverage reports parsed", "{report}"),
		parseDuration:   b.histogram(metricParseDuration, "Duration of parsing one coverage report", "s", parseBuckets),
		gateEvaluations: b.counter(metricGateEvaluations, "Quality gate evaluations", "{evaluation}"),
		inflight:        b.upDownCounter(metricRecordInflight, "Builds being recorded", "{build}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// ReportParsed records one parsed report with its format and outcome status.
func (rm *RecordMetrics) ReportParsed(ctx context.Context, format, status string, duration time.Duration) {
	if rm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrFormat, format), attribute.String(attrStatus, status))
	rm.reportsParsed.Add(ctx, 1, attrs)
	rm.parseDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrFormat, format)))
}

// GateEvaluated records a quality gate verdict.
func (rm *RecordMetrics) GateEvaluated(ctx context.Context, status string) {
	if rm == nil {
		return
	}

	rm.gateEvaluations.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// TrackRecord increments the in-flight gauge and returns the matching decrement.
func (rm *RecordMetrics) TrackRecord(ctx context.Context) func() {
	if rm == nil {
		return func() {}
	}

	rm.inflight.Add(ctx, 1)

	return func() { rm.inflight.Add(ctx, -1) }
}

// instrumentBuilder keeps the first instrument creation error.
type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.keep(name, err)

	return c
}

func (b *instrumentBuilder) histogram(name, desc, unit string, bounds []float64) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	b.keep(name, err)

	return h
}

func (b *instrumentBuilder) upDownCounter(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.keep(name, err)

	return c
}

func (b *instrumentBuilder) keep(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}
