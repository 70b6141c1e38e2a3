package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
alpaca:
  key_id: test-key
  secret_key: test-secret
trade:
  fixed_budget_usd: "200.00"
parser:
  regex_enabled: true
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, ":8090", cfg.App.HTTPAddr)
	assert.Equal(t, "https://paper-api.alpaca.markets", cfg.Alpaca.BaseURL)
	assert.Equal(t, "https://data.alpaca.markets/v2", cfg.Alpaca.DataURL)
	assert.Equal(t, 20, cfg.Alpaca.TimeoutSeconds)
	assert.Equal(t, "5.00", cfg.Trade.TakeProfitPercent)
	assert.Equal(t, 1200, cfg.Watcher.PollIntervalMS)
	assert.Equal(t, 15, cfg.Watcher.TimeoutMinutes)
	assert.Equal(t, 10, cfg.Reconciler.PollSeconds)
	assert.Equal(t, 60, cfg.Reconciler.LookbackMinutes)
	assert.Equal(t, "data/tradingbot.db", cfg.Store.Path)
}

func TestLoadOverlaysCredentialEnvVars(t *testing.T) {
	t.Setenv("ALPACA_API_KEY_ID", "env-key")
	t.Setenv("ALPACA_API_SECRET_KEY", "env-secret")

	cfg, err := Load(writeConfig(t, `
trade:
  fixed_budget_usd: "100"
parser:
  regex_enabled: true
`))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Alpaca.KeyID)
	assert.Equal(t, "env-secret", cfg.Alpaca.SecretKey)
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	t.Setenv("ALPACA_API_KEY_ID", "")
	t.Setenv("ALPACA_API_SECRET_KEY", "")

	_, err := Load(writeConfig(t, `
trade:
  fixed_budget_usd: "100"
parser:
  regex_enabled: true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}

func TestLoadRejectsBadBudget(t *testing.T) {
	cases := []string{`"0"`, `"-5"`, `"abc"`, `""`}
	for _, budget := range cases {
		_, err := Load(writeConfig(t, `
alpaca:
  key_id: k
  secret_key: s
trade:
  fixed_budget_usd: `+budget+`
parser:
  regex_enabled: true
`))
		assert.Error(t, err, "budget=%s", budget)
	}
}

func TestLoadRejectsAllParsersDisabled(t *testing.T) {
	_, err := Load(writeConfig(t, `
alpaca:
  key_id: k
  secret_key: s
trade:
  fixed_budget_usd: "100"
parser:
  regex_enabled: false
  ai_enabled: false
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parser")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
