package fetch

import (
	"context"
	"io"
	nethttp "net/http"
	"time"
)

// Transport performs one physical HTTP exchange. Implementations must honour ctx
// cancellation and leave the response body unread.
type Transport interface {
	Send(ctx context.Context, req *TransportRequest) (*TransportResponse, error)
}

// TransportFunc adapts a function to the Transport interface
type TransportFunc func(ctx context.Context, req *TransportRequest) (*TransportResponse, error)

// Send calls f(ctx, req)
func (f TransportFunc) Send(ctx context.Context, req *TransportRequest) (*TransportResponse, error) {
	return f(ctx, req)
}

// TransportRequest is the wire-level description of one attempt
type TransportRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Auth    *BasicAuth
}

// TransportResponse is a received response whose body has not been consumed yet.
// The engine always closes Body.
type TransportResponse struct {
	StatusCode int
	Headers    nethttp.Header
	Body       io.ReadCloser
}

// OK reports whether the status code is 2xx
func (r *TransportResponse) OK() bool {
	return IsSuccessStatus(r.StatusCode)
}

// DiagnosticFunc receives a one-line summary when a call needed retries.
// It is invoked at most once per call and never affects the outcome.
type DiagnosticFunc func(message string, tags map[string]string)

// Request describes one logical JSON request. The zero value of every optional
// field selects the default behaviour.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Auth    *BasicAuth

	// Retryable overrides the retry policy. Default: true for GET, false otherwise.
	Retryable *bool
	// ThrowOnErrorStatus selects error-return presentation. Default: true.
	ThrowOnErrorStatus *bool
	// ParseBodyOnError parses non-2xx bodies too. Default: !ThrowOnErrorStatus.
	ParseBodyOnError *bool
	// Diagnostic is called once after the retry loop when at least one retry happened.
	Diagnostic DiagnosticFunc
}

// Result is the normalized outcome of a logical request
type Result[T any] struct {
	StatusCode int
	OK         bool
	Headers    nethttp.Header
	// Data is nil when the body was not parsed or was JSON null
	Data *T
	// Retries is the number of retries actually performed
	Retries int
	// ErrorMessages holds one message per failed attempt, oldest first. A failure that
	// ended the loop without being retried adds one message beyond Retries.
	ErrorMessages []string
	// Err is set when the call did not yield a usable 2xx JSON body and
	// ThrowOnErrorStatus was false
	Err   error
	Stats Stats
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	Attempts    int
	CallCount   int64
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// RequestInterceptor is called before sending each attempt
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving each response
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds engine and HTTP transport configuration
type Config struct {
	Timeout              time.Duration
	MaxResponseBytes     int64
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	BasicAuth            *BasicAuth
	DefaultHeaders       map[string]string
	// LogPayloads enables debug-level logging of headers and body payloads
	LogPayloads bool
	// MaxPayloadLogBytes caps the number of body bytes logged when LogPayloads is enabled
	MaxPayloadLogBytes int
	// TraceIDHeader configures the header name used for trace ID propagation (default: X-Request-ID)
	TraceIDHeader string
	// NewTraceID generates a new trace ID when none is present (default: uuid)
	NewTraceID func() string
	// TraceIDExtractor allows advanced extraction of a trace ID from context; return ok=false to fallback to generator
	TraceIDExtractor func(ctx context.Context) (traceID string, ok bool)
	// EnableW3CTrace enables W3C Trace Context (traceparent/tracestate) propagation and generation
	EnableW3CTrace bool
	// AttemptSpans wraps the HTTP client so every physical attempt gets its own child span
	AttemptSpans bool
	// RateLimit caps attempts per second across the engine; zero disables limiting
	RateLimit float64
	// RateBurst is the limiter bucket size (minimum 1 when RateLimit is set)
	RateBurst int
}

// Bool returns a pointer to b, for the optional Request flags
func Bool(b bool) *bool {
	return &b
}
