// Package tracking records OpenTelemetry spans and metrics for fetch calls.
// Instruments are created lazily from the global meter provider.
package tracking

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// Instrumentation scope for fetch spans and metrics
	instrumentationName = "go-fetch/fetch"

	// Metric names
	metricAttemptDuration = "http.client.request.duration" // Histogram in seconds, one point per attempt
	metricAttempts        = "fetch.attempts"               // Counter of physical attempts
	metricRetries         = "fetch.retries"                // Counter of retries performed

	// Attribute keys per OTel semantic conventions where one exists
	attrHTTPMethod     = "http.request.method"
	attrURLPath        = "url.path"
	attrHTTPStatusCode = "http.response.status_code"
	attrErrorType      = "error.type"
	attrOutcome        = "fetch.outcome"
	attrRetries        = "fetch.retries"
	attrAttempts       = "fetch.attempts"
)

var (
	fetchMeter  metric.Meter
	meterOnce   sync.Once
	meterInitMu sync.Mutex

	attemptDuration metric.Float64Histogram
	attemptCounter  metric.Int64Counter
	retryCounter    metric.Int64Counter
)

func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize fetch metric %s: %v\n", metricName, err)
	}
}

func initFetchMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if fetchMeter != nil {
		return
	}

	fetchMeter = otel.Meter(instrumentationName)

	var err error
	attemptDuration, err = fetchMeter.Float64Histogram(
		metricAttemptDuration,
		metric.WithDescription("Duration of individual HTTP attempts made by the fetch engine"),
		metric.WithUnit("s"),
	)
	logMetricError(metricAttemptDuration, err)

	attemptCounter, err = fetchMeter.Int64Counter(
		metricAttempts,
		metric.WithDescription("Number of physical HTTP attempts"),
		metric.WithUnit("{attempt}"),
	)
	logMetricError(metricAttempts, err)

	retryCounter, err = fetchMeter.Int64Counter(
		metricRetries,
		metric.WithDescription("Number of retries performed after retryable failures"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricRetries, err)
}

func ensureFetchMeterInitialized() {
	meterOnce.Do(initFetchMeter)
}

// RecordAttempt records one physical attempt. statusCode is 0 when no response was received.
func RecordAttempt(ctx context.Context, method, path string, statusCode int, outcome string, duration time.Duration) {
	ensureFetchMeterInitialized()

	attrs := []attribute.KeyValue{
		attribute.String(attrHTTPMethod, method),
		attribute.String(attrURLPath, path),
		attribute.String(attrOutcome, outcome),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int(attrHTTPStatusCode, statusCode))
	}

	if attemptDuration != nil {
		attemptDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if attemptCounter != nil {
		attemptCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// recordRetries adds the retries of a finished call
func recordRetries(ctx context.Context, method, path string, retries int) {
	ensureFetchMeterInitialized()

	if retries <= 0 || retryCounter == nil {
		return
	}
	retryCounter.Add(ctx, int64(retries), metric.WithAttributes(
		attribute.String(attrHTTPMethod, method),
		attribute.String(attrURLPath, path),
	))
}

// ResetForTesting resets the metric state for testing purposes.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	fetchMeter = nil
	attemptDuration = nil
	attemptCounter = nil
	retryCounter = nil
	meterOnce = sync.Once{}
}
