package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/issue-hunter/internal/apperrors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("PORT", "")
	cfg, err := Load(writeConfig(t, "payment:\n  wallet_address: TWalletAddr\ngithub:\n  token: ghp_file\n"))
	require.NoError(t, err)

	assert.Equal(t, "ghp_file", cfg.GitHub.Token)
	assert.Equal(t, DefaultPort, cfg.Server.Port)

	assert.Equal(t, "TWalletAddr", cfg.Payment.WalletAddress)
	assert.Equal(t, "TRC20", cfg.Payment.Network)
	assert.Equal(t, 15, cfg.Pacing.DailyLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.Pacing.MinDelay)
	assert.Equal(t, 2*time.Second, cfg.Pacing.MaxDelay)
	assert.Equal(t, StoreMemory, cfg.Pacing.Store)
	assert.Equal(t, 48, cfg.Filter.FreshnessHours)
	assert.Equal(t, 48*time.Hour, cfg.FreshnessWindow())
	assert.Len(t, cfg.Filter.NegativeKeywords, 8)
	assert.Len(t, cfg.Search.Queries, 15)
	assert.Equal(t, []string{"urgent", "asap", "deadline"}, cfg.Urgency.Title)
	assert.Equal(t, 3, cfg.Agent.MaxPerRun)
	assert.False(t, cfg.Agent.DryRun)

	src := cfg.SourceConfig()
	assert.Equal(t, "https://api.github.com", src.APIURL)
	assert.Equal(t, 30, src.Fetch.TimeoutSeconds)
	assert.Equal(t, 3, src.Fetch.MaxRetries)
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
payment:
  wallet_address: TWalletAddr
  network: erc20
pacing:
  daily_limit: 4
  min_delay: 1s
  max_delay: 3s
search:
  queries: ["need help with", "bounty"]
agent:
  dry_run: true
`))
	require.NoError(t, err)

	assert.Equal(t, "ERC20", cfg.Payment.Network)
	assert.Equal(t, 4, cfg.Pacing.DailyLimit)
	assert.Equal(t, time.Second, cfg.Pacing.MinDelay)
	assert.Equal(t, 3*time.Second, cfg.Pacing.MaxDelay)
	assert.Equal(t, []string{"need help with", "bounty"}, cfg.Search.Queries)
	assert.True(t, cfg.Agent.DryRun)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HUNTER_PAYMENT_WALLET_ADDRESS", "TFromEnv")
	t.Setenv("HUNTER_PACING_DAILY_LIMIT", "7")
	t.Setenv("HUNTER_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "ghp_fallback")

	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "TFromEnv", cfg.Payment.WalletAddress)
	assert.Equal(t, 7, cfg.Pacing.DailyLimit)
	assert.Equal(t, "ghp_fallback", cfg.GitHub.Token)
	assert.Equal(t, "ghp_fallback", cfg.SourceConfig().Fetch.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingWallet(t *testing.T) {
	t.Setenv("HUNTER_PAYMENT_WALLET_ADDRESS", "")
	_, err := Load(writeConfig(t, "agent:\n  dry_run: true\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingWallet))
	assert.True(t, apperrors.Is(err, apperrors.CodeConfiguration))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		option string
	}{
		{"delays inverted", "pacing:\n  min_delay: 5s\n  max_delay: 1s\n", "pacing.min_delay"},
		{"zero limit", "pacing:\n  daily_limit: -1\n", "pacing.daily_limit"},
		{"unknown store", "pacing:\n  store: etcd\n", "pacing.store"},
		{"postgres without url", "pacing:\n  store: postgres\n", "database.url"},
		{"zero freshness", "filter:\n  freshness_hours: 0\n", "filter.freshness_hours"},
	}

	t.Setenv("DATABASE_URL", "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "payment:\n  wallet_address: TWallet\n"+tt.body))
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeConfiguration))
			assert.Contains(t, err.Error(), tt.option)
		})
	}
}

func TestLoad_TokenRequiredOutsideDryRun(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("HUNTER_GITHUB_TOKEN", "")
	path := writeConfig(t, "payment:\n  wallet_address: TWallet\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfiguration))
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Contains(t, err.Error(), "github.token")

	cfg, err := Load(path, WithOverride("agent.dry_run", true))
	require.NoError(t, err)
	assert.True(t, cfg.Agent.DryRun)
	assert.Empty(t, cfg.GitHub.Token)
}

func TestLoad_PortFallback(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_x")
	t.Setenv("HUNTER_SERVER_PORT", "")
	t.Setenv("PORT", "9191")
	cfg, err := Load(writeConfig(t, "payment:\n  wallet_address: TWallet\n"))
	require.NoError(t, err)
	assert.Equal(t, "9191", cfg.Server.Port)

	cfg, err = Load(writeConfig(t, "payment:\n  wallet_address: TWallet\nserver:\n  port: \"7000\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port, "explicit setting beats PORT")
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
