package config

import (
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/gaborage/go-fetch/observability"
)

// Config represents the overall configuration of a go-fetch process.
// The koanf instance is kept for access to custom keys that are not part of the struct.
type Config struct {
	App           AppConfig            `koanf:"app" json:"app" yaml:"app" mapstructure:"app"`
	Log           LogConfig            `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Fetch         FetchConfig          `koanf:"fetch" json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Observability observability.Config `koanf:"observability" json:"observability" yaml:"observability" mapstructure:"observability"`

	k *koanf.Koanf `json:"-" yaml:"-" mapstructure:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" mapstructure:"version" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" mapstructure:"env" validate:"oneof=development staging production"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// FetchConfig holds settings of the fetch engine and its HTTP transport.
type FetchConfig struct {
	// Timeout bounds each attempt; retries get a fresh timeout
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// MaxResponseBytes caps response bodies; larger bodies fail without retry
	MaxResponseBytes int64 `koanf:"maxresponsebytes" json:"maxresponsebytes" yaml:"maxresponsebytes" mapstructure:"maxresponsebytes" validate:"gt=0"`

	LogPayloads        bool `koanf:"logpayloads" json:"logpayloads" yaml:"logpayloads" mapstructure:"logpayloads"`
	MaxPayloadLogBytes int  `koanf:"maxpayloadlogbytes" json:"maxpayloadlogbytes" yaml:"maxpayloadlogbytes" mapstructure:"maxpayloadlogbytes" validate:"gte=0"`

	TraceIDHeader string `koanf:"traceidheader" json:"traceidheader" yaml:"traceidheader" mapstructure:"traceidheader" validate:"required"`
	W3CTrace      bool   `koanf:"w3ctrace" json:"w3ctrace" yaml:"w3ctrace" mapstructure:"w3ctrace"`

	// AttemptSpans records a child span per physical attempt
	AttemptSpans bool `koanf:"attemptspans" json:"attemptspans" yaml:"attemptspans" mapstructure:"attemptspans"`

	// RateLimit is in attempts per second; 0 disables client-side limiting
	RateLimit float64 `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit" mapstructure:"ratelimit" validate:"gte=0"`
	RateBurst int     `koanf:"rateburst" json:"rateburst" yaml:"rateburst" mapstructure:"rateburst" validate:"gte=0"`

	UserAgent      string            `koanf:"useragent" json:"useragent" yaml:"useragent" mapstructure:"useragent"`
	DefaultHeaders map[string]string `koanf:"defaultheaders" json:"defaultheaders" yaml:"defaultheaders" mapstructure:"defaultheaders"`
}
