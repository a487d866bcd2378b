package config

import (
	"errors"
	"fmt"
)

// ValidationError contains details about what failed validation.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// Validate checks all config values for validity.
// Returns nil if valid, or joined errors for all validation failures.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.StoreDSN == "" {
		errs = append(errs, &ValidationError{
			Field:   "store_dsn",
			Value:   cfg.StoreDSN,
			Message: "must not be empty",
		})
	}

	switch cfg.PlannerStrategy {
	case "fifo", "priority":
	default:
		errs = append(errs, &ValidationError{
			Field:   "planner_strategy",
			Value:   cfg.PlannerStrategy,
			Message: `must be "fifo" or "priority"`,
		})
	}

	if cfg.RetentionLeewaySeconds < 0 {
		errs = append(errs, &ValidationError{
			Field:   "retention_leeway_seconds",
			Value:   cfg.RetentionLeewaySeconds,
			Message: "must be non-negative",
		})
	}

	if cfg.RetentionInterval <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "retention_interval",
			Value:   cfg.RetentionInterval,
			Message: "must be positive",
		})
	}

	if cfg.OfferPollInterval <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "offer_poll_interval",
			Value:   cfg.OfferPollInterval,
			Message: "must be positive",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
