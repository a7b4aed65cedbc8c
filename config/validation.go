package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(koanfName)
	return v
}

// Validate checks cfg against its struct rules and the observability section rules.
// The first failure is returned as a *ConfigError.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			return toConfigError(validationErrors[0])
		}
		return err
	}

	if err := cfg.Observability.Validate(); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}
	return nil
}

func toConfigError(fe validator.FieldError) *ConfigError {
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value '%v'", fe.Value()), strings.Fields(fe.Param()))
	case "gt":
		return NewInvalidFieldError(field, fmt.Sprintf("must be greater than %s", fe.Param()), nil)
	case "gte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at least %s", fe.Param()), nil)
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed on the '%s' rule", fe.Tag()), nil)
	}
}

// fieldPath turns "Config.fetch.timeout" into "fetch.timeout"
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func koanfName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("koanf"), ",")
	if name == "-" {
		return ""
	}
	return name
}
