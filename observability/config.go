package observability

import (
	"fmt"
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that outputs to stdout (for local development).
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the default environment name.
	EnvironmentDevelopment = "development"
)

// BoolPtr returns a pointer to the provided bool value.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to the provided float64 value.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Config defines the OpenTelemetry export settings of a go-fetch process.
// Traces and metrics share the endpoint, protocol and headers.
type Config struct {
	// Enabled controls whether observability is active; when false the provider is a no-op.
	Enabled bool `koanf:"enabled" mapstructure:"enabled"`

	Service ServiceConfig `koanf:"service" mapstructure:"service"`

	// Environment is recorded as deployment.environment.name.
	Environment string `koanf:"environment" mapstructure:"environment"`

	// Endpoint is "stdout" or an OTLP endpoint. HTTP endpoints use the "host:port" form,
	// as do gRPC endpoints.
	Endpoint string `koanf:"endpoint" mapstructure:"endpoint"`

	// Protocol is "http" or "grpc"; ignored for stdout.
	Protocol string `koanf:"protocol" mapstructure:"protocol"`

	// Insecure disables TLS towards the OTLP endpoint.
	Insecure bool `koanf:"insecure" mapstructure:"insecure"`

	// Headers are sent with every OTLP export, typically for authentication.
	Headers map[string]string `koanf:"headers" mapstructure:"headers"`

	Trace   TraceConfig   `koanf:"trace" mapstructure:"trace"`
	Metrics MetricsConfig `koanf:"metrics" mapstructure:"metrics"`
}

// ServiceConfig contains service identification metadata.
type ServiceConfig struct {
	// Name is required when observability is enabled.
	Name    string `koanf:"name" mapstructure:"name"`
	Version string `koanf:"version" mapstructure:"version"`
}

// TraceConfig defines configuration for distributed tracing.
type TraceConfig struct {
	// Enabled: nil applies the default (true when observability is enabled).
	Enabled *bool `koanf:"enabled" mapstructure:"enabled"`

	// SampleRate is the fraction of traces recorded (0.0 to 1.0). nil applies 1.0.
	SampleRate *float64 `koanf:"samplerate" mapstructure:"samplerate"`

	// BatchTimeout is how long spans are buffered before export.
	BatchTimeout time.Duration `koanf:"batchtimeout" mapstructure:"batchtimeout"`
}

// MetricsConfig defines configuration for metrics export.
type MetricsConfig struct {
	// Enabled: nil applies the default (true when observability is enabled).
	Enabled *bool `koanf:"enabled" mapstructure:"enabled"`

	// Interval between periodic exports.
	Interval time.Duration `koanf:"interval" mapstructure:"interval"`
}

// ApplyDefaults sets default values for any fields that are not specified.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}
	if c.Endpoint == "" {
		c.Endpoint = EndpointStdout
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolHTTP
	}
	if c.Endpoint == EndpointStdout {
		c.Insecure = true
	}

	if c.Enabled && c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Trace.SampleRate == nil {
		c.Trace.SampleRate = Float64Ptr(1.0)
	}
	if c.Trace.BatchTimeout == 0 {
		if c.Environment == EnvironmentDevelopment || c.Endpoint == EndpointStdout {
			c.Trace.BatchTimeout = 500 * time.Millisecond
		} else {
			c.Trace.BatchTimeout = 5 * time.Second
		}
	}

	if c.Enabled && c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 10 * time.Second
	}
}

// Validate checks the configuration. Disabled configurations are always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if c.Trace.SampleRate != nil && (*c.Trace.SampleRate < 0 || *c.Trace.SampleRate > 1) {
		return ErrInvalidSampleRate
	}
	if c.Endpoint == EndpointStdout {
		return nil
	}
	if c.Protocol != ProtocolHTTP && c.Protocol != ProtocolGRPC {
		return fmt.Errorf("protocol '%s': %w", c.Protocol, ErrInvalidProtocol)
	}
	if strings.HasPrefix(c.Endpoint, "http://") || strings.HasPrefix(c.Endpoint, "https://") {
		return fmt.Errorf("endpoint '%s' must use host:port form: %w", c.Endpoint, ErrInvalidEndpointFormat)
	}
	return nil
}

func (c *Config) traceEnabled() bool {
	return c.Trace.Enabled != nil && *c.Trace.Enabled
}

func (c *Config) metricsEnabled() bool {
	return c.Metrics.Enabled != nil && *c.Metrics.Enabled
}
