package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-fetch/logger"
	"github.com/gaborage/go-fetch/trace"
)

const (
	headerAccept      = "Accept"
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"
)

// HTTPTransport sends attempts through net/http. It applies default headers,
// authentication, trace propagation, interceptors and optional rate limiting,
// and logs every exchange.
type HTTPTransport struct {
	httpClient           *nethttp.Client
	logger               logger.Logger
	config               *Config
	limiter              *rate.Limiter
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport. A nil client, or a client without a timeout,
// gets cfg.Timeout; a nil cfg selects the defaults.
func NewHTTPTransport(log logger.Logger, client *nethttp.Client, cfg *Config) *HTTPTransport {
	if log == nil {
		log = logger.Nop()
	}
	if cfg == nil {
		cfg = defaultConfig()
	}
	if client == nil {
		client = &nethttp.Client{Timeout: cfg.Timeout}
	} else if client.Timeout == 0 && cfg.Timeout > 0 {
		withTimeout := *client
		withTimeout.Timeout = cfg.Timeout
		client = &withTimeout
	}
	if cfg.AttemptSpans {
		client = withAttemptSpans(client)
	}

	t := &HTTPTransport{
		httpClient:           client,
		logger:               log,
		config:               cfg,
		requestInterceptors:  cfg.RequestInterceptors,
		responseInterceptors: cfg.ResponseInterceptors,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return t
}

// withAttemptSpans returns a copy of client whose round tripper opens a child span per attempt
func withAttemptSpans(client *nethttp.Client) *nethttp.Client {
	base := client.Transport
	if base == nil {
		base = nethttp.DefaultTransport
	}
	traced := *client
	traced.Transport = otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *nethttp.Request) string {
			return "attempt " + r.Method + " " + SanitizePath(r.URL.String())
		}),
	)
	return &traced
}

// Send performs one attempt. The response body is returned unread.
func (t *HTTPTransport) Send(ctx context.Context, req *TransportRequest) (*TransportResponse, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	start := time.Now()
	httpReq, requestID, err := t.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	log := t.logger.WithContext(ctx)
	t.logRequest(log, httpReq, requestID, req.Body)

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if err := t.runResponseInterceptors(ctx, httpReq, httpResp); err != nil {
		httpResp.Body.Close()
		return nil, NewInterceptorError("response interceptor failed", "response", err)
	}

	t.logResponse(log, httpResp, requestID, time.Since(start))

	body := httpResp.Body
	if t.config.LogPayloads {
		body = newPayloadRecorder(body, t.payloadLimit(), func(payload []byte, truncated bool) {
			log.Debug().
				Str("direction", "inbound").
				Str("request_id", requestID).
				Bytes("body", payload).
				Bool("body_truncated", truncated).
				Msg("Fetch response payload")
		})
	}

	return &TransportResponse{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}, nil
}

// buildRequest constructs an *http.Request, applies headers/auth/trace and runs request interceptors.
func (t *HTTPTransport) buildRequest(ctx context.Context, req *TransportRequest) (*nethttp.Request, string, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, "", NewValidationError(fmt.Sprintf("failed to create HTTP request: %v", err), "url")
	}

	t.applyHeaders(httpReq, req)
	t.applyAuth(httpReq, req)
	requestID := t.applyTrace(ctx, httpReq)

	if err := t.runRequestInterceptors(ctx, httpReq); err != nil {
		return nil, requestID, NewInterceptorError("request interceptor failed", "request", err)
	}
	return httpReq, requestID, nil
}

// applyHeaders applies default then request headers; request headers win
func (t *HTTPTransport) applyHeaders(httpReq *nethttp.Request, req *TransportRequest) {
	for key, value := range t.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if httpReq.Header.Get(headerAccept) == "" {
		httpReq.Header.Set(headerAccept, mimeJSON)
	}
	if httpReq.Header.Get(headerContentType) == "" && req.Body != nil {
		httpReq.Header.Set(headerContentType, mimeJSON)
	}
}

// applyAuth applies basic authentication; request credentials take precedence
func (t *HTTPTransport) applyAuth(httpReq *nethttp.Request, req *TransportRequest) {
	auth := req.Auth
	if auth == nil {
		auth = t.config.BasicAuth
	}
	if auth != nil {
		httpReq.SetBasicAuth(auth.Username, auth.Password)
	}
}

// applyTrace stamps correlation headers. An active OpenTelemetry span is propagated
// through the global propagator before falling back to context values or generated ids.
func (t *HTTPTransport) applyTrace(ctx context.Context, httpReq *nethttp.Request) string {
	if t.config.EnableW3CTrace && oteltrace.SpanContextFromContext(ctx).IsValid() &&
		httpReq.Header.Get(trace.HeaderTraceParent) == "" {
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))
	}
	return trace.InjectHeaders(ctx, httpReq.Header, trace.Propagation{
		IDHeader:  t.config.TraceIDHeader,
		NewID:     t.config.NewTraceID,
		Extractor: t.config.TraceIDExtractor,
		W3C:       t.config.EnableW3CTrace,
	})
}

func (t *HTTPTransport) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range t.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (t *HTTPTransport) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range t.responseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

func (t *HTTPTransport) payloadLimit() int {
	if t.config.MaxPayloadLogBytes > 0 {
		return t.config.MaxPayloadLogBytes
	}
	return DefaultMaxPayloadLogBytes
}

// logRequest logs the outgoing request. Only the sanitized path is logged.
func (t *HTTPTransport) logRequest(log logger.Logger, httpReq *nethttp.Request, requestID string, body []byte) {
	log.Info().
		Str("direction", "outbound").
		Str("method", httpReq.Method).
		Str("url", SanitizePath(httpReq.URL.String())).
		Str("request_id", requestID).
		Int("header_count", len(httpReq.Header)).
		Int("body_size", len(body)).
		Msg("Fetch request")

	if !t.config.LogPayloads {
		return
	}
	payload, truncated := truncatePayload(body, t.payloadLimit())
	log.Debug().
		Str("direction", "outbound").
		Str("request_id", requestID).
		Interface("headers", httpReq.Header).
		Bytes("body", payload).
		Bool("body_truncated", truncated).
		Msg("Fetch request payload")
}

// logResponse logs the response status line
func (t *HTTPTransport) logResponse(log logger.Logger, resp *nethttp.Response, requestID string, elapsed time.Duration) {
	log.Info().
		Str("direction", "inbound").
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Int64("content_length", resp.ContentLength).
		Dur("elapsed", elapsed).
		Msg("Fetch response")

	if t.config.LogPayloads {
		log.Debug().
			Str("direction", "inbound").
			Str("request_id", requestID).
			Interface("headers", resp.Header).
			Msg("Fetch response headers")
	}
}

func truncatePayload(body []byte, limit int) ([]byte, bool) {
	if limit > 0 && len(body) > limit {
		return body[:limit], true
	}
	return body, false
}

// payloadRecorder captures the head of a body as it is read and reports it once on Close
type payloadRecorder struct {
	io.ReadCloser
	limit     int
	buf       bytes.Buffer
	truncated bool
	report    func(payload []byte, truncated bool)
	reported  bool
}

func newPayloadRecorder(body io.ReadCloser, limit int, report func([]byte, bool)) *payloadRecorder {
	return &payloadRecorder{ReadCloser: body, limit: limit, report: report}
}

func (p *payloadRecorder) Read(b []byte) (int, error) {
	n, err := p.ReadCloser.Read(b)
	if n > 0 {
		room := p.limit - p.buf.Len()
		switch {
		case room >= n:
			p.buf.Write(b[:n])
		case room > 0:
			p.buf.Write(b[:room])
			p.truncated = true
		default:
			p.truncated = true
		}
	}
	return n, err
}

func (p *payloadRecorder) Close() error {
	if !p.reported {
		p.reported = true
		p.report(p.buf.Bytes(), p.truncated)
	}
	return p.ReadCloser.Close()
}
