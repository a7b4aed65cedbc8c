package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testService = "catalog-sync"

func TestApplyDefaults(t *testing.T) {
	t.Run("enabled configuration", func(t *testing.T) {
		cfg := Config{Enabled: true, Service: ServiceConfig{Name: testService}}
		cfg.ApplyDefaults()

		assert.Equal(t, "unknown", cfg.Service.Version)
		assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
		assert.Equal(t, EndpointStdout, cfg.Endpoint)
		assert.Equal(t, ProtocolHTTP, cfg.Protocol)
		assert.True(t, cfg.Insecure, "stdout needs no TLS")
		require.NotNil(t, cfg.Trace.Enabled)
		assert.True(t, *cfg.Trace.Enabled)
		require.NotNil(t, cfg.Trace.SampleRate)
		assert.InDelta(t, 1.0, *cfg.Trace.SampleRate, 0)
		assert.Equal(t, 500*time.Millisecond, cfg.Trace.BatchTimeout)
		require.NotNil(t, cfg.Metrics.Enabled)
		assert.True(t, *cfg.Metrics.Enabled)
		assert.Equal(t, 10*time.Second, cfg.Metrics.Interval)
	})

	t.Run("production collector gets a longer batch timeout", func(t *testing.T) {
		cfg := Config{
			Enabled:     true,
			Service:     ServiceConfig{Name: testService},
			Environment: "production",
			Endpoint:    "otel-collector:4317",
		}
		cfg.ApplyDefaults()

		assert.Equal(t, 5*time.Second, cfg.Trace.BatchTimeout)
		assert.False(t, cfg.Insecure)
	})

	t.Run("explicit values are kept", func(t *testing.T) {
		cfg := Config{
			Enabled: true,
			Trace:   TraceConfig{Enabled: BoolPtr(false), SampleRate: Float64Ptr(0.25)},
			Metrics: MetricsConfig{Enabled: BoolPtr(false), Interval: time.Minute},
		}
		cfg.ApplyDefaults()

		assert.False(t, cfg.traceEnabled())
		assert.False(t, cfg.metricsEnabled())
		assert.InDelta(t, 0.25, *cfg.Trace.SampleRate, 0)
		assert.Equal(t, time.Minute, cfg.Metrics.Interval)
	})

	t.Run("disabled configuration leaves signals off", func(t *testing.T) {
		cfg := Config{}
		cfg.ApplyDefaults()

		assert.False(t, cfg.traceEnabled())
		assert.False(t, cfg.metricsEnabled())
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{name: "nil", cfg: nil, wantErr: ErrNilConfig},
		{name: "disabled", cfg: &Config{}},
		{name: "missing service name", cfg: &Config{Enabled: true}, wantErr: ErrMissingServiceName},
		{
			name:    "sample rate out of range",
			cfg:     &Config{Enabled: true, Service: ServiceConfig{Name: testService}, Trace: TraceConfig{SampleRate: Float64Ptr(1.5)}},
			wantErr: ErrInvalidSampleRate,
		},
		{
			name: "stdout ignores protocol",
			cfg:  &Config{Enabled: true, Service: ServiceConfig{Name: testService}, Endpoint: EndpointStdout, Protocol: "carrier-pigeon"},
		},
		{
			name:    "unknown protocol",
			cfg:     &Config{Enabled: true, Service: ServiceConfig{Name: testService}, Endpoint: "collector:4317", Protocol: "udp"},
			wantErr: ErrInvalidProtocol,
		},
		{
			name:    "endpoint with scheme",
			cfg:     &Config{Enabled: true, Service: ServiceConfig{Name: testService}, Endpoint: "https://collector:4318", Protocol: ProtocolHTTP},
			wantErr: ErrInvalidEndpointFormat,
		},
		{
			name: "grpc collector",
			cfg:  &Config{Enabled: true, Service: ServiceConfig{Name: testService}, Endpoint: "collector:4317", Protocol: ProtocolGRPC},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
