package observability

import "errors"

// Configuration errors returned by Validate and NewProvider. Callers match them with errors.Is.
var (
	ErrNilConfig             = errors.New("observability: config is nil")
	ErrMissingServiceName    = errors.New("observability: service name is required when enabled")
	ErrInvalidSampleRate     = errors.New("observability: trace sample rate must be within [0, 1]")
	ErrInvalidProtocol       = errors.New("observability: OTLP protocol must be http or grpc")
	ErrInvalidEndpointFormat = errors.New("observability: OTLP endpoint must be host:port without a scheme")
)
