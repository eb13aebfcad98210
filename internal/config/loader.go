// Package config provides configuration management for the Boat Better application.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the configuration (${VAR} syntax)
	expanded := os.ExpandEnv(string(data))

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional
// fields, tolerating a missing config file.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOAT_BETTER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// An absent shutdown_hour must mean disabled, not midnight.
	v.SetDefault("app.shutdown_hour", -1)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "boat-better")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_hour", -1)
	v.SetDefault("app.max_run_seconds", 0)

	v.SetDefault("ledger.path", "data/wagers.db")

	v.SetDefault("datasource.timeout_seconds", 15)
	v.SetDefault("datasource.max_retries", 3)
	v.SetDefault("datasource.rate_limit", 5.0)
	v.SetDefault("datasource.circuit_breaker_max", 5)

	v.SetDefault("oracle.request_timeout_seconds", 10)
	v.SetDefault("oracle.cache_ttl_seconds", 120)

	v.SetDefault("scan.interval_seconds", 180)
	v.SetDefault("scan.races_per_venue", 12)
	v.SetDefault("scan.markets", []string{"EXACTA", "TRIFECTA"})
	v.SetDefault("scan.admission_window_minutes", 60)
	v.SetDefault("scan.workers", 8)
	v.SetDefault("scan.stake", 1000)

	v.SetDefault("reconcile.interval_seconds", 300)
	v.SetDefault("reconcile.report_hours", []int{12, 18, 22})

	v.SetDefault("notify.console_enabled", true)
	v.SetDefault("health.port", "8080")
}
