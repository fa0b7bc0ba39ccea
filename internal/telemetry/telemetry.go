// Package telemetry builds the meter provider the managers report to.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ServiceName identifies this tool in exported metrics.
const ServiceName = "nplserver"

// DefaultInterval is how often metrics are exported while running.
const DefaultInterval = time.Minute

// Options configures Init.
type Options struct {
	// Enabled turns on export; a disabled setup returns a no-op provider.
	Enabled bool
	// Writer receives the exported metrics; nil means stderr.
	Writer   io.Writer
	Interval time.Duration
}

// ShutdownFunc flushes pending metrics and releases the exporter.
type ShutdownFunc func(context.Context) error

// Init returns a meter provider and its shutdown function. Shutdown performs
// a final export, so every counter recorded during the run is written.
func Init(opts Options) (metric.MeterProvider, ShutdownFunc, error) {
	if !opts.Enabled {
		return noop.NewMeterProvider(), func(context.Context) error { return nil }, nil
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(w),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	return mp, mp.Shutdown, nil
}
