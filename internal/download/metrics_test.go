package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// sumByResult collects name and returns its data points keyed by the
// "result" attribute.
func sumByResult(t *testing.T, reader sdkmetric.Reader, name string) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				result, _ := dp.Attributes.Value(attribute.Key("result"))
				out[result.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestDownloadMetrics(t *testing.T) {
	payload := []byte("binary-bytes")
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	e := New(Options{Logger: zerolog.Nop(), MeterProvider: provider})

	dir := t.TempDir()
	require.NoError(t, e.DownloadFile(context.Background(), srv.URL+"/ok", filepath.Join(dir, "a"), nil))
	require.Error(t, e.DownloadFile(context.Background(), srv.URL+"/missing", filepath.Join(dir, "b"), nil))

	assert.Equal(t, map[string]int64{"success": 1, "http_error": 1}, sumByResult(t, reader, MetricDownloads))
	assert.Equal(t, map[string]int64{"": int64(len(payload))}, sumByResult(t, reader, MetricDownloadBytes))
}
