package download

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "nplserver/download"

// Metric names.
const (
	MetricDownloads     = "nplserver_downloads_total"
	MetricDownloadBytes = "nplserver_download_bytes_total"
)

type metrics struct {
	downloads metric.Int64Counter
	bytes     metric.Int64Counter
}

// newMetrics registers the engine's instruments on provider, falling back to
// the global provider. Instruments that fail to register become no-ops.
func newMetrics(provider metric.MeterProvider) *metrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	m := &metrics{}
	var err error
	m.downloads, err = meter.Int64Counter(
		MetricDownloads,
		metric.WithDescription("Binary downloads by result"),
	)
	if err != nil {
		otel.Handle(err)
		m.downloads = noop.Int64Counter{}
	}
	m.bytes, err = meter.Int64Counter(
		MetricDownloadBytes,
		metric.WithDescription("Bytes written by completed downloads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		otel.Handle(err)
		m.bytes = noop.Int64Counter{}
	}
	return m
}

func (m *metrics) record(ctx context.Context, result string, bytes int64) {
	m.downloads.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	if bytes > 0 {
		m.bytes.Add(ctx, bytes)
	}
}
