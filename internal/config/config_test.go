package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := fromEnv(envOf(map[string]string{
		"BOT_TOKEN":    "123:abc",
		"DATABASE_URL": "memory",
	}))
	require.NoError(t, err)
	require.Equal(t, "3000", cfg.Port)
	require.Equal(t, "FX-VM", cfg.AppName)
	require.Equal(t, "development", cfg.Env)
	require.True(t, cfg.UseMemoryStore())
	require.False(t, cfg.UseWebhook())
	require.Zero(t, cfg.StateTTL)
	require.Equal(t, 120, cfg.WebRatePerMinute)
	require.Empty(t, cfg.AdminIDs)
}

func TestFromEnvRequiredValues(t *testing.T) {
	_, err := fromEnv(envOf(map[string]string{"DATABASE_URL": "memory"}))
	require.ErrorContains(t, err, "BOT_TOKEN")

	_, err = fromEnv(envOf(map[string]string{"BOT_TOKEN": "x"}))
	require.ErrorContains(t, err, "DATABASE_URL")

	// DB_SOURCE is accepted as an alias.
	cfg, err := fromEnv(envOf(map[string]string{"BOT_TOKEN": "x", "DB_SOURCE": "postgres://db/fx"}))
	require.NoError(t, err)
	require.Equal(t, "postgres://db/fx", cfg.DBSource)
}

func TestFromEnvParsesLists(t *testing.T) {
	cfg, err := fromEnv(envOf(map[string]string{
		"BOT_TOKEN":    "x",
		"DATABASE_URL": "postgres://db/fx",
		"ADMIN_IDS":    " 11, 22 ,,33",
		"PG_SSL":       "Yes",
		"STATE_TTL":    "30m",
		"BOT_USERNAME": "@fxvm_bot",
	}))
	require.NoError(t, err)
	require.Equal(t, []int64{11, 22, 33}, cfg.AdminIDs)
	require.True(t, cfg.IsAdmin(22))
	require.False(t, cfg.IsAdmin(44))
	require.True(t, cfg.PGSSL)
	require.Equal(t, 30*time.Minute, cfg.StateTTL)
	require.Equal(t, "fxvm_bot", cfg.BotUsername)

	_, err = fromEnv(envOf(map[string]string{"BOT_TOKEN": "x", "DATABASE_URL": "m", "ADMIN_IDS": "abc"}))
	require.Error(t, err)
	_, err = fromEnv(envOf(map[string]string{"BOT_TOKEN": "x", "DATABASE_URL": "m", "STATE_TTL": "often"}))
	require.Error(t, err)
}

func TestWebhookAndWebAppURLs(t *testing.T) {
	require.Equal(t, "https://fx.example.com/telegram/webhook", NormalizeWebhookURL("https://fx.example.com"))
	require.Equal(t, "https://fx.example.com/hook", NormalizeWebhookURL("https://fx.example.com/hook"))
	require.Empty(t, NormalizeWebhookURL(""))

	cfg := &Config{
		WebhookURL: "https://fx.example.com/telegram/webhook",
		WebAppURL:  "https://app.example.com/mine",
	}
	require.Equal(t, "https://fx.example.com", cfg.BackendBaseURL())
	require.Equal(t, "https://app.example.com/mine?api=https%3A%2F%2Ffx.example.com", cfg.WebAppLaunchURL())

	cfg.WebAppURL = "https://app.example.com/mine?api=https://other"
	require.Equal(t, "https://app.example.com/mine?api=https://other", cfg.WebAppLaunchURL())
}
