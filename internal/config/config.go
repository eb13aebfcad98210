// Package config provides configuration management for the Boat Better application.
package config

import (
	"time"

	"github.com/yourusername/boat-better/internal/gate"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig              `mapstructure:"app" validate:"required"`
	Ledger     LedgerConfig           `mapstructure:"ledger" validate:"required"`
	Datasource DatasourceConfig       `mapstructure:"datasource" validate:"required"`
	Oracle     OracleConfig           `mapstructure:"oracle" validate:"required"`
	Scan       ScanConfig             `mapstructure:"scan" validate:"required"`
	Reconcile  ReconcileConfig        `mapstructure:"reconcile" validate:"required"`
	Policies   []gate.AdmissionPolicy `mapstructure:"policies" validate:"required,min=1"`
	Notify     NotifyConfig           `mapstructure:"notify"`
	Health     HealthConfig           `mapstructure:"health"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
	// ShutdownHour stops the daemon at the given local hour, -1 disables.
	ShutdownHour  int `mapstructure:"shutdown_hour" validate:"gte=-1,lte=23"`
	MaxRunSeconds int `mapstructure:"max_run_seconds" validate:"gte=0"`
}

// LedgerConfig locates the embedded wager store.
type LedgerConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// DatasourceConfig represents the extraction service endpoints and the
// shared fetch client's limits.
type DatasourceConfig struct {
	BaseURL           string  `mapstructure:"base_url" validate:"required,url"`
	APIKey            string  `mapstructure:"api_key"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	MaxRetries        int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimit         float64 `mapstructure:"rate_limit" validate:"required,gt=0"`
	CircuitBreakerMax int     `mapstructure:"circuit_breaker_max" validate:"required,gt=0"`
}

// OracleConfig represents the probability service configuration
type OracleConfig struct {
	BaseURL               string `mapstructure:"base_url" validate:"required,url"`
	APIKey                string `mapstructure:"api_key"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
	CacheTTLSeconds       int    `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
}

// ScanConfig represents scan orchestrator configuration
type ScanConfig struct {
	IntervalSeconds        int      `mapstructure:"interval_seconds" validate:"required,gt=0"`
	Venues                 []int    `mapstructure:"venues" validate:"required,min=1,dive,min=1"`
	RacesPerVenue          int      `mapstructure:"races_per_venue" validate:"required,gt=0"`
	Markets                []string `mapstructure:"markets" validate:"required,min=1,markets"`
	AdmissionWindowMinutes int      `mapstructure:"admission_window_minutes" validate:"required,gt=0"`
	Workers                int      `mapstructure:"workers" validate:"gte=0"`
	Stake                  int64    `mapstructure:"stake" validate:"required,gt=0"`
}

// ReconcileConfig represents reconciliation poller configuration
type ReconcileConfig struct {
	IntervalSeconds int   `mapstructure:"interval_seconds" validate:"required,gt=0"`
	ReportHours     []int `mapstructure:"report_hours" validate:"dive,gte=0,lte=23"`
}

// NotifyConfig represents notification delivery configuration
type NotifyConfig struct {
	DiscordWebhookURL string `mapstructure:"discord_webhook_url"`
	ConsoleEnabled    bool   `mapstructure:"console_enabled"`
}

// HealthConfig represents the health and metrics endpoint configuration
type HealthConfig struct {
	Port string `mapstructure:"port"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// ScanInterval returns the scan cadence as a duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scan.IntervalSeconds) * time.Second
}

// ReconcileInterval returns the reconcile cadence as a duration.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Reconcile.IntervalSeconds) * time.Second
}

// AdmissionWindow returns how close to its deadline a race must be
// before it is scanned.
func (c *Config) AdmissionWindow() time.Duration {
	return time.Duration(c.Scan.AdmissionWindowMinutes) * time.Minute
}

// MaxRunDuration returns the daemon's run-time cap, zero for unlimited.
func (c *Config) MaxRunDuration() time.Duration {
	return time.Duration(c.App.MaxRunSeconds) * time.Second
}
