// Package config provides configuration management for the Boat Better application.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/boat-better/internal/models"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	v.RegisterValidation("environment", validateEnvironment)
	v.RegisterValidation("loglevel", validateLogLevel)
	v.RegisterValidation("markets", validateMarkets)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return validateCrossField(cfg)
}

// validateEnvironment validates the environment field
func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

// validateLogLevel validates the log level field
func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateMarkets checks every configured market is a known type
func validateMarkets(fl validator.FieldLevel) bool {
	markets, ok := fl.Field().Interface().([]string)
	if !ok || len(markets) == 0 {
		return false
	}
	for _, m := range markets {
		switch models.MarketType(m) {
		case models.MarketTypeExacta, models.MarketTypeTrifecta:
		default:
			return false
		}
	}
	return true
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	for _, venue := range cfg.Scan.Venues {
		if venue < 1 || venue > 24 {
			return fmt.Errorf("venue id %d out of range 1-24", venue)
		}
	}

	// Each policy must target a scanned venue and market, otherwise it
	// is dead configuration someone probably mistyped.
	scanned := make(map[int]bool, len(cfg.Scan.Venues))
	for _, v := range cfg.Scan.Venues {
		scanned[v] = true
	}
	markets := make(map[string]bool, len(cfg.Scan.Markets))
	for _, m := range cfg.Scan.Markets {
		markets[m] = true
	}
	for _, p := range cfg.Policies {
		if !scanned[p.VenueID] {
			return fmt.Errorf("policy for venue %d, which is not scanned", p.VenueID)
		}
		if !markets[string(p.Market)] {
			return fmt.Errorf("policy for market %s, which is not scanned", p.Market)
		}
	}

	if cfg.IsProduction() && cfg.Notify.DiscordWebhookURL == "" && !cfg.Notify.ConsoleEnabled {
		return fmt.Errorf("production requires at least one notification channel")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max", "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "markets":
			errMsg += fmt.Sprintf("- Field '%s' must list only EXACTA and TRIFECTA\n", field)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}
