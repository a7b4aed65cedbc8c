package fetch

import (
	"context"
	"maps"
	nethttp "net/http"
	"time"

	"github.com/gaborage/go-fetch/config"
	"github.com/gaborage/go-fetch/logger"
	"github.com/gaborage/go-fetch/trace"
)

func defaultConfig() *Config {
	return &Config{
		Timeout:              DefaultTimeout,
		MaxResponseBytes:     DefaultMaxResponseBytes,
		MaxPayloadLogBytes:   DefaultMaxPayloadLogBytes,
		RequestInterceptors:  []RequestInterceptor{},
		ResponseInterceptors: []ResponseInterceptor{},
		DefaultHeaders:       make(map[string]string),
		TraceIDHeader:        trace.HeaderXRequestID,
	}
}

// Builder provides a fluent interface for configuring an Engine
type Builder struct {
	config     *Config
	logger     logger.Logger
	transport  Transport
	httpClient *nethttp.Client
	sleep      Sleeper
}

// NewBuilder creates a new engine builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: log,
	}
}

// WithTransport replaces the net/http transport. Transport-level options
// (headers, auth, interceptors, trace, rate limit, payload logging) are then ignored.
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithHTTPClient sets the client used by the net/http transport. A non-zero client
// timeout takes precedence over WithTimeout.
func (b *Builder) WithHTTPClient(client *nethttp.Client) *Builder {
	b.httpClient = client
	return b
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{
		Username: username,
		Password: password,
	}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithRateLimit limits attempts to perSecond with the given burst
func (b *Builder) WithRateLimit(perSecond float64, burst int) *Builder {
	b.config.RateLimit = perSecond
	b.config.RateBurst = burst
	return b
}

// WithMaxResponseBytes caps response bodies; n <= 0 removes the cap
func (b *Builder) WithMaxResponseBytes(n int64) *Builder {
	b.config.MaxResponseBytes = n
	return b
}

// WithLogPayloads enables debug logging of headers and bodies, truncated to maxBytes
// (DefaultMaxPayloadLogBytes when maxBytes <= 0)
func (b *Builder) WithLogPayloads(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	b.config.MaxPayloadLogBytes = maxBytes
	return b
}

// WithTraceIDHeader sets the header used for trace ID propagation
func (b *Builder) WithTraceIDHeader(name string) *Builder {
	if name != "" {
		b.config.TraceIDHeader = name
	}
	return b
}

// WithTraceIDGenerator sets the generator used when the context carries no trace ID
func (b *Builder) WithTraceIDGenerator(fn func() string) *Builder {
	b.config.NewTraceID = fn
	return b
}

// WithTraceIDExtractor sets a function that extracts a trace ID from the request context
func (b *Builder) WithTraceIDExtractor(fn func(ctx context.Context) (string, bool)) *Builder {
	b.config.TraceIDExtractor = fn
	return b
}

// WithW3CTrace enables traceparent/tracestate propagation
func (b *Builder) WithW3CTrace(enabled bool) *Builder {
	b.config.EnableW3CTrace = enabled
	return b
}

// WithAttemptSpans records a child span per physical attempt under the call span
func (b *Builder) WithAttemptSpans(enabled bool) *Builder {
	b.config.AttemptSpans = enabled
	return b
}

// WithSleeper replaces the backoff wait. The schedule itself is fixed.
func (b *Builder) WithSleeper(s Sleeper) *Builder {
	b.sleep = s
	return b
}

// Build creates the engine with the configured options
func (b *Builder) Build() *Engine {
	cfg := *b.config
	cfg.DefaultHeaders = maps.Clone(b.config.DefaultHeaders)

	transport := b.transport
	if transport == nil {
		transport = NewHTTPTransport(b.logger, b.httpClient, &cfg)
	}

	e := NewEngine(b.logger, transport)
	e.maxResponseBytes = cfg.MaxResponseBytes
	if b.sleep != nil {
		e.sleep = b.sleep
	}
	return e
}

// NewEngineFromConfig creates an engine with a net/http transport from loaded configuration
func NewEngineFromConfig(log logger.Logger, cfg *config.FetchConfig) *Engine {
	b := NewBuilder(log)
	if cfg == nil {
		return b.Build()
	}

	if cfg.Timeout > 0 {
		b.WithTimeout(cfg.Timeout)
	}
	if cfg.MaxResponseBytes > 0 {
		b.WithMaxResponseBytes(cfg.MaxResponseBytes)
	}
	for key, value := range cfg.DefaultHeaders {
		b.WithDefaultHeader(key, value)
	}
	if cfg.UserAgent != "" {
		b.WithDefaultHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.RateLimit > 0 {
		b.WithRateLimit(cfg.RateLimit, cfg.RateBurst)
	}

	return b.
		WithLogPayloads(cfg.LogPayloads, cfg.MaxPayloadLogBytes).
		WithTraceIDHeader(cfg.TraceIDHeader).
		WithW3CTrace(cfg.W3CTrace).
		WithAttemptSpans(cfg.AttemptSpans).
		Build()
}
