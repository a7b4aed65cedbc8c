package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const (
	attributeMismatchErrMsg = "attribute %s value mismatch"
	testMethod              = "GET"
	testPath                = "/users/[id]"
)

func setupTestMeterProvider(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	ResetForTesting()

	prev := otel.GetMeterProvider()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetMeterProvider(prev)
		ResetForTesting()
	})

	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != instrumentationName {
			continue
		}
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func assertAttribute(t *testing.T, set attribute.Set, key string, expected any) {
	t.Helper()
	value, ok := set.Value(attribute.Key(key))
	require.True(t, ok, "attribute %s not found", key)
	switch v := expected.(type) {
	case string:
		assert.Equal(t, v, value.AsString(), attributeMismatchErrMsg, key)
	case int:
		assert.Equal(t, int64(v), value.AsInt64(), attributeMismatchErrMsg, key)
	default:
		t.Fatalf("unsupported attribute type %T", expected)
	}
}

func TestRecordAttemptDuration(t *testing.T) {
	reader := setupTestMeterProvider(t)

	RecordAttempt(context.Background(), testMethod, testPath, 200, "success", 120*time.Millisecond)

	m := findMetric(collect(t, reader), metricAttemptDuration)
	require.NotNil(t, m, "expected %s metric", metricAttemptDuration)
	assert.Equal(t, "s", m.Unit)

	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected histogram data")
	require.Len(t, hist.DataPoints, 1)

	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(1), dp.Count)
	assert.InDelta(t, 0.12, dp.Sum, 0.0001)
	assertAttribute(t, dp.Attributes, attrHTTPMethod, testMethod)
	assertAttribute(t, dp.Attributes, attrURLPath, testPath)
	assertAttribute(t, dp.Attributes, attrHTTPStatusCode, 200)
	assertAttribute(t, dp.Attributes, attrOutcome, "success")
}

func TestRecordAttemptCounter(t *testing.T) {
	reader := setupTestMeterProvider(t)

	RecordAttempt(context.Background(), testMethod, testPath, 0, "retryable", time.Millisecond)
	RecordAttempt(context.Background(), testMethod, testPath, 0, "retryable", time.Millisecond)
	RecordAttempt(context.Background(), testMethod, testPath, 200, "success", time.Millisecond)

	m := findMetric(collect(t, reader), metricAttempts)
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum")
	assert.True(t, sum.IsMonotonic)

	byOutcome := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key(attrOutcome))
		byOutcome[outcome.AsString()] += dp.Value

		if outcome.AsString() == "retryable" {
			_, hasStatus := dp.Attributes.Value(attribute.Key(attrHTTPStatusCode))
			assert.False(t, hasStatus, "attempts without a response carry no status code")
		}
	}
	assert.Equal(t, map[string]int64{"retryable": 2, "success": 1}, byOutcome)
}

func TestCallEndRecordsRetries(t *testing.T) {
	reader := setupTestMeterProvider(t)

	ctx, call := StartFetch(context.Background(), testMethod, testPath)
	call.End(ctx, 200, 3, 2, "", nil)

	m := findMetric(collect(t, reader), metricRetries)
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
	assertAttribute(t, sum.DataPoints[0].Attributes, attrURLPath, testPath)
}

func TestCallEndWithoutRetriesRecordsNothing(t *testing.T) {
	reader := setupTestMeterProvider(t)

	ctx, call := StartFetch(context.Background(), testMethod, testPath)
	call.End(ctx, 200, 1, 0, "", nil)

	assert.Nil(t, findMetric(collect(t, reader), metricRetries))
}

func TestResetForTesting(t *testing.T) {
	setupTestMeterProvider(t)

	ensureFetchMeterInitialized()
	require.NotNil(t, fetchMeter)
	require.NotNil(t, attemptCounter)

	ResetForTesting()
	assert.Nil(t, fetchMeter)
	assert.Nil(t, attemptDuration)
	assert.Nil(t, attemptCounter)
	assert.Nil(t, retryCounter)
}
