// Package config loads go-fetch configuration from defaults, an optional YAML file
// and GOFETCH_ prefixed environment variables, in increasing order of priority.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix scopes the environment variables read by Load
	EnvPrefix = "GOFETCH_"

	// DefaultFile is read by Load when present
	DefaultFile = "config.yaml"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. config.yaml in the working directory, if present
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	return LoadFile(DefaultFile)
}

// LoadFile is like Load but reads the YAML file at path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	return load(func(k *koanf.Koanf) error {
		if path == "" {
			return nil
		}
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		return nil
	})
}

// LoadBytes is like Load but reads YAML from data instead of a file
func LoadBytes(data []byte) (*Config, error) {
	return load(func(k *koanf.Koanf) error {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to parse yaml: %w", err)
		}
		return nil
	})
}

func load(loadYAML func(k *koanf.Koanf) error) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadYAML(k); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// envKey converts GOFETCH_FETCH_TIMEOUT into fetch.timeout
func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "go-fetch",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"fetch.timeout":            "30s",
		"fetch.maxresponsebytes":   10 << 20,
		"fetch.logpayloads":        false,
		"fetch.maxpayloadlogbytes": 4096,
		"fetch.traceidheader":      "X-Request-ID",
		"fetch.w3ctrace":           false,
		"fetch.attemptspans":       false,
		"fetch.ratelimit":          0,
		"fetch.rateburst":          0,
		"fetch.useragent":          "go-fetch",

		// Observability stays disabled unless explicitly configured
		"observability.enabled":  false,
		"observability.endpoint": "stdout",
		"observability.protocol": "http",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
