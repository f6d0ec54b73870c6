package gate

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// engineMetrics holds the OpenTelemetry instruments for rule evaluation.
type engineMetrics struct {
	results  metric.Int64Counter
	duration metric.Float64Histogram
	verdicts metric.Int64Counter
}

func newEngineMetrics(meter metric.Meter) (*engineMetrics, error) {
	m := &engineMetrics{}
	var err error

	m.results, err = meter.Int64Counter(
		"semgate.gate.results",
		metric.WithDescription("Rule evaluations by gate and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"semgate.gate.rule.duration",
		metric.WithDescription("Rule predicate duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.verdicts, err = meter.Int64Counter(
		"semgate.gate.verdicts",
		metric.WithDescription("Gate verdicts by gate and pass"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *engineMetrics) recordResult(ctx context.Context, r Result) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("gate", r.Gate.String()),
		attribute.String("outcome", string(r.Outcome)),
	)
	m.results.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(r.Duration.Microseconds())/1000, metric.WithAttributes(attribute.String("gate", r.Gate.String())))
}

func (m *engineMetrics) recordVerdict(ctx context.Context, v Verdict) {
	if m == nil {
		return
	}
	m.verdicts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gate", v.Gate.String()),
		attribute.Bool("pass", v.Pass),
	))
}
