package process

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "nplserver/process"

// Metric names.
const (
	MetricSpawns            = "nplserver_server_spawns_total"
	MetricHandshakeDuration = "nplserver_handshake_duration_seconds"
)

type metrics struct {
	spawns    metric.Int64Counter
	handshake metric.Float64Histogram
}

func newMetrics(provider metric.MeterProvider) *metrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	m := &metrics{}
	var err error
	m.spawns, err = meter.Int64Counter(
		MetricSpawns,
		metric.WithDescription("Language server spawns by outcome"),
	)
	if err != nil {
		otel.Handle(err)
		m.spawns = noop.Int64Counter{}
	}
	m.handshake, err = meter.Float64Histogram(
		MetricHandshakeDuration,
		metric.WithDescription("Time from spawn until the server answered initialize"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
		m.handshake = noop.Float64Histogram{}
	}
	return m
}

func (m *metrics) recordSpawn(ctx context.Context, result string, elapsed time.Duration) {
	m.spawns.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	if result == "ready" {
		m.handshake.Record(ctx, elapsed.Seconds())
	}
}
