package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidateConfig validates the configuration using struct tags plus a few
// custom validators
func ValidateConfig(cfg *Config) error {
	v := validator.New()

	if err := v.RegisterValidation("environment", validateEnvironment); err != nil {
		return fmt.Errorf("failed to register environment validator: %w", err)
	}
	if err := v.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return fmt.Errorf("failed to register loglevel validator: %w", err)
	}

	if err := v.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return err
	}

	// Cross-field checks that struct tags cannot express
	if cfg.Broker.RequestTopic == cfg.Broker.ResultTopic {
		return fmt.Errorf("broker request_topic and result_topic must differ")
	}
	if cfg.Scheduler.Enabled && cfg.Scheduler.RedispatchCron == "" {
		return fmt.Errorf("scheduler.redispatch_cron is required when the scheduler is enabled")
	}

	return nil
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	}
	return false
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
		return true
	}
	return false
}

func formatValidationErrors(errs validator.ValidationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	return fmt.Errorf("invalid config field %s: failed '%s' validation (value: %v)",
		first.Namespace(), first.Tag(), first.Value())
}
