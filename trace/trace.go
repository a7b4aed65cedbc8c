// Package trace carries request correlation identifiers through a context and
// stamps them onto outbound request headers.
package trace

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	traceIDKey     contextKey = "trace_id"
	traceParentKey contextKey = "traceparent"
	traceStateKey  contextKey = "tracestate"

	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
	// HeaderTraceState is the W3C trace context "tracestate" header name
	HeaderTraceState = "tracestate"
)

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// IDFromContext returns a trace ID from context if present
func IDFromContext(ctx context.Context) (string, bool) {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok && traceID != "" {
		return traceID, true
	}
	return "", false
}

// EnsureTraceID returns an existing trace ID from context or generates a new one
func EnsureTraceID(ctx context.Context) string {
	if traceID, ok := IDFromContext(ctx); ok {
		return traceID
	}
	return uuid.New().String()
}

// WithTraceParent adds a W3C traceparent value to the context
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// ParentFromContext returns a traceparent from context if present
func ParentFromContext(ctx context.Context) (string, bool) {
	if tp, ok := ctx.Value(traceParentKey).(string); ok && tp != "" {
		return tp, true
	}
	return "", false
}

// WithTraceState adds a W3C tracestate value to the context
func WithTraceState(ctx context.Context, traceState string) context.Context {
	return context.WithValue(ctx, traceStateKey, traceState)
}

// StateFromContext returns a tracestate from context if present
func StateFromContext(ctx context.Context) (string, bool) {
	if ts, ok := ctx.Value(traceStateKey).(string); ok && ts != "" {
		return ts, true
	}
	return "", false
}

// GenerateTraceParent creates a minimal W3C traceparent header value.
// Format: version(2)-trace-id(32)-span-id(16)-flags(2), e.g., "00-<32>-<16>-01"
func GenerateTraceParent() string {
	traceID := randomNonZero(16)
	spanID := randomNonZero(8)
	return "00-" + hex.EncodeToString(traceID) + "-" + hex.EncodeToString(spanID) + "-01"
}

// randomNonZero returns n random bytes; all-zero ids are invalid in W3C trace context.
func randomNonZero(n int) []byte {
	b := make([]byte, n)
	if _, err := crand.Read(b); err != nil {
		clear(b)
	}
	for _, v := range b {
		if v != 0 {
			return b
		}
	}
	b[n-1] = 0x01
	return b
}

// Propagation controls how InjectHeaders stamps correlation headers.
type Propagation struct {
	// IDHeader receives the trace ID (default: X-Request-ID)
	IDHeader string
	// NewID generates an ID when the context carries none (default: uuid)
	NewID func() string
	// Extractor lets callers pull an ID from their own context keys; ok=false falls back
	Extractor func(ctx context.Context) (string, bool)
	// W3C enables traceparent/tracestate propagation
	W3C bool
}

// InjectHeaders sets correlation headers on h without overwriting values the caller set
// explicitly. It returns the trace ID carried by the request.
func InjectHeaders(ctx context.Context, h http.Header, p Propagation) string {
	header := p.IDHeader
	if header == "" {
		header = HeaderXRequestID
	}

	traceID := h.Get(header)
	if traceID == "" {
		traceID = resolveID(ctx, p)
		h.Set(header, traceID)
	}

	if p.W3C && h.Get(HeaderTraceParent) == "" {
		if tp, ok := ParentFromContext(ctx); ok {
			h.Set(HeaderTraceParent, tp)
		} else {
			h.Set(HeaderTraceParent, GenerateTraceParent())
		}
		if ts, ok := StateFromContext(ctx); ok && h.Get(HeaderTraceState) == "" {
			h.Set(HeaderTraceState, ts)
		}
	}
	return traceID
}

func resolveID(ctx context.Context, p Propagation) string {
	if p.Extractor != nil {
		if id, ok := p.Extractor(ctx); ok && id != "" {
			return id
		}
	}
	if id, ok := IDFromContext(ctx); ok {
		return id
	}
	if p.NewID != nil {
		if id := p.NewID(); id != "" {
			return id
		}
	}
	return uuid.New().String()
}
