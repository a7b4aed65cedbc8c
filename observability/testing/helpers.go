// Package testing provides in-memory OpenTelemetry providers and assertion helpers
// for tests of fetch instrumentation.
//
// Usage:
//
//	tp := NewTestTraceProvider()
//	defer tp.Shutdown(context.Background())
//	otel.SetTracerProvider(tp)
//
//	// exercise code that creates spans
//
//	span := FindSpan(t, tp.Exporter.GetSpans(), "GET /users")
//	AssertSpanAttribute(t, &span, "url.path", "/users")
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const attrValueMismatchErrMsg = "attribute %s value mismatch"

// TestTraceProvider wraps the SDK TracerProvider and in-memory exporter for testing.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider creates a TracerProvider that exports spans synchronously to memory.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	return &TestTraceProvider{
		TracerProvider: provider,
		Exporter:       exporter,
	}
}

// TestMeterProvider wraps the SDK MeterProvider and manual reader for testing.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider creates a MeterProvider whose metrics are collected on demand.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)

	return &TestMeterProvider{
		MeterProvider: provider,
		Reader:        reader,
	}
}

// Collect reads all metrics from the provider.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, tmp.Reader.Collect(context.Background(), &rm), "failed to collect metrics")
	return rm
}

// FindMetric returns the metric named metricName, or nil.
func FindMetric(rm metricdata.ResourceMetrics, metricName string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == metricName {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// SumInt64 adds the data points of an int64 counter across all attribute sets.
// A missing metric sums to zero.
func SumInt64(t *testing.T, rm metricdata.ResourceMetrics, metricName string) int64 {
	t.Helper()
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", metricName)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

// HistogramCount adds the sample counts of a float64 histogram across all attribute sets.
func HistogramCount(t *testing.T, rm metricdata.ResourceMetrics, metricName string) uint64 {
	t.Helper()
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "metric %s is not a float64 histogram", metricName)

	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	return total
}

// FindSpan returns the first span named name, failing the test when there is none.
func FindSpan(t *testing.T, spans tracetest.SpanStubs, name string) tracetest.SpanStub {
	t.Helper()
	for _, span := range spans {
		if span.Name == name {
			return span
		}
	}
	require.Failf(t, "span not found", "no span named %q among %d spans", name, len(spans))
	return tracetest.SpanStub{}
}

// AssertSpanAttribute asserts that span carries key with the expected value.
func AssertSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string, expected any) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) != key {
			continue
		}
		assertValue(t, key, attr.Value, expected)
		return
	}
	t.Errorf("attribute %s not found in span", key)
}

func assertValue(t *testing.T, key string, value attribute.Value, expected any) {
	t.Helper()
	switch v := expected.(type) {
	case string:
		assert.Equal(t, v, value.AsString(), attrValueMismatchErrMsg, key)
	case int:
		assert.Equal(t, int64(v), value.AsInt64(), attrValueMismatchErrMsg, key)
	case int64:
		assert.Equal(t, v, value.AsInt64(), attrValueMismatchErrMsg, key)
	case bool:
		assert.Equal(t, v, value.AsBool(), attrValueMismatchErrMsg, key)
	default:
		t.Fatalf("unsupported attribute value type: %T", expected)
	}
}
