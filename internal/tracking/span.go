package tracking

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Call tracks one logical fetch from start to result
type Call struct {
	span   trace.Span
	method string
	path   string
}

// StartFetch opens a client span named after the method and sanitized path.
// The returned context carries the span so transports can propagate it.
func StartFetch(ctx context.Context, method, path string) (context.Context, *Call) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrHTTPMethod, method),
			attribute.String(attrURLPath, path),
		),
	)
	return ctx, &Call{span: span, method: method, path: path}
}

// End records the call's retry history and final status, then ends the span.
// errorType is the classification of err and may be empty.
func (c *Call) End(ctx context.Context, statusCode, attempts, retries int, errorType string, err error) {
	if c == nil {
		return
	}

	recordRetries(ctx, c.method, c.path, retries)

	attrs := []attribute.KeyValue{
		attribute.Int(attrAttempts, attempts),
		attribute.Int(attrRetries, retries),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int(attrHTTPStatusCode, statusCode))
	}
	if err != nil {
		if errorType == "" {
			errorType = classifyError(err)
		}
		attrs = append(attrs, attribute.String(attrErrorType, errorType))
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}
	c.span.SetAttributes(attrs...)
	c.span.End()
}

func classifyError(err error) string {
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "_OTHER"
}
