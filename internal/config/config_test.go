package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/boat-better/internal/gate"
	"github.com/yourusername/boat-better/internal/models"
)

const testYAML = `
app:
  name: boat-better
  environment: development
  log_level: debug

ledger:
  path: /tmp/wagers.db

datasource:
  base_url: https://extractor.example.com
  api_key: ${TEST_DATASOURCE_KEY}
  timeout_seconds: 15
  max_retries: 3
  rate_limit: 5.0
  circuit_breaker_max: 5

oracle:
  base_url: https://oracle.example.com
  request_timeout_seconds: 10
  cache_ttl_seconds: 120

scan:
  interval_seconds: 180
  venues: [1, 2, 24]
  races_per_venue: 12
  markets: [EXACTA, TRIFECTA]
  admission_window_minutes: 60
  workers: 8
  stake: 1000

reconcile:
  interval_seconds: 300
  report_hours: [12, 22]

policies:
  - venue_id: 1
    market: EXACTA
    min_probability: 0.05
    min_expected_value: 1.1
    price_cap: 30.0
    max_candidates: 3

notify:
  console_enabled: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_DATASOURCE_KEY", "sekret")

	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "boat-better", cfg.App.Name)
	assert.Equal(t, "sekret", cfg.Datasource.APIKey)
	assert.Equal(t, []int{1, 2, 24}, cfg.Scan.Venues)
	assert.Equal(t, int64(1000), cfg.Scan.Stake)

	require.Len(t, cfg.Policies, 1)
	assert.Equal(t, models.MarketTypeExacta, cfg.Policies[0].Market)
	assert.InDelta(t, 1.1, cfg.Policies[0].MinExpectedValue, 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadWithDefaultsToleratesMissingFile(t *testing.T) {
	cfg, err := LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, 180, cfg.Scan.IntervalSeconds)
	assert.Equal(t, 12, cfg.Scan.RacesPerVenue)
	assert.Equal(t, []string{"EXACTA", "TRIFECTA"}, cfg.Scan.Markets)
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	t.Setenv("TEST_DATASOURCE_KEY", "x")
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)
	assert.NoError(t, Validate(cfg))
}

func TestValidateRejectsBadEnvironment(t *testing.T) {
	t.Setenv("TEST_DATASOURCE_KEY", "x")
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	cfg.App.Environment = "qa"
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Environment")
}

func TestValidateRejectsUnknownMarket(t *testing.T) {
	t.Setenv("TEST_DATASOURCE_KEY", "x")
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	cfg.Scan.Markets = []string{"QUINELLA"}
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsPolicyForUnscannedVenue(t *testing.T) {
	t.Setenv("TEST_DATASOURCE_KEY", "x")
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	cfg.Policies = append(cfg.Policies, gate.AdmissionPolicy{
		VenueID:       7,
		Market:        models.MarketTypeExacta,
		PriceCap:      30,
		MaxCandidates: 1,
	})
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "venue 7")
}

func TestOverlaySecrets(t *testing.T) {
	cfg := &Config{}
	overlaySecretsOnConfig(cfg, &SecretsOverlay{
		DiscordWebhookURL: "https://discord.example/hook",
		OracleAPIKey:      "oracle-key",
	})

	assert.Equal(t, "https://discord.example/hook", cfg.Notify.DiscordWebhookURL)
	assert.Equal(t, "oracle-key", cfg.Oracle.APIKey)
	assert.Empty(t, cfg.Datasource.APIKey)
}
