package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics bundles the OpenTelemetry instruments a session records into.
// Only the metric API is used; wiring a real provider is the caller's
// concern, and Noop() gives a safe default.
type Metrics struct {
	records     metric.Int64Counter
	batches     metric.Int64Counter
	patients    metric.Int64Counter
	parseErrors metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewMetrics creates the instrument bundle on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	records, err := meter.Int64Counter("riskstream.records",
		metric.WithDescription("classified feed records dispatched"))
	if err != nil {
		return nil, err
	}
	batches, err := meter.Int64Counter("riskstream.batches",
		metric.WithDescription("batch records dispatched"))
	if err != nil {
		return nil, err
	}
	patients, err := meter.Int64Counter("riskstream.patients",
		metric.WithDescription("patient-risk items delivered"))
	if err != nil {
		return nil, err
	}
	parseErrors, err := meter.Int64Counter("riskstream.parse_errors",
		metric.WithDescription("lines that failed to parse"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("riskstream.session_seconds",
		metric.WithDescription("session duration by terminal state"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		records:     records,
		batches:     batches,
		patients:    patients,
		parseErrors: parseErrors,
		duration:    duration,
	}, nil
}

// Noop returns an instrument bundle backed by the noop meter provider.
func Noop() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("riskstream"))
	return m
}

// RecordDispatched counts one classified record of the given kind.
func (m *Metrics) RecordDispatched(ctx context.Context, kind string) {
	m.records.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// BatchDispatched counts one batch and the items it carried.
func (m *Metrics) BatchDispatched(ctx context.Context, items int) {
	m.batches.Add(ctx, 1)
	m.patients.Add(ctx, int64(items))
}

// ParseErrorObserved counts one unparseable line.
func (m *Metrics) ParseErrorObserved(ctx context.Context) {
	m.parseErrors.Add(ctx, 1)
}

// SessionEnded records the session duration labelled with its terminal state.
func (m *Metrics) SessionEnded(ctx context.Context, state string, elapsed time.Duration) {
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("state", state)))
}
