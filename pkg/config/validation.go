package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration with struct tags plus rules that tags
// cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Store.Backup.Enabled {
		if cfg.Store.Type != "badger" {
			return fmt.Errorf("store.backup: backups require store.type=badger, got %q", cfg.Store.Type)
		}
		if cfg.Store.Backup.Interval <= 0 {
			return fmt.Errorf("store.backup: interval must be positive, got %v", cfg.Store.Backup.Interval)
		}
	}

	if cfg.Server.RateLimit.RequestsPerSecond > 0 && cfg.Server.RateLimit.Burst <= 0 {
		return fmt.Errorf("server.rate_limit: burst must be positive when requests_per_second is set")
	}

	return nil
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
