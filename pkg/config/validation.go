package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	rpc := &cfg.Adapters.JSONRPC

	if !rpc.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if err := rpc.Validate(); err != nil {
		return fmt.Errorf("adapters.jsonrpc: %w", err)
	}

	if _, err := cfg.CORS.Policy(); err != nil {
		return fmt.Errorf("cors: %w", err)
	}

	if cfg.Server.Metrics.Enabled && rpc.Port != 0 && cfg.Server.Metrics.Port == rpc.Port {
		return fmt.Errorf("server.metrics.port: %d is already used by adapters.jsonrpc", rpc.Port)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		// Return the first validation error with context
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
