package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "GEMINI_API_KEY", "LOG_LEVEL", "DEBUG", "PREFER_IPV4",
		"GEMINI_MODEL", "GEMINI_BASE_URL", "GEMINI_API_VERSION", "GEMINI_TEMPERATURE",
		"STRUCTURED_OUTPUT", "PARSE_POLICY", "WEB_ADDR", "MAX_UPLOAD_MB", "SESSION_TTL_MINUTES",
		"REDIS_URL", "SUPABASE_URL", "SUPABASE_SERVICE_KEY", "SUPABASE_HISTORY_TABLE",
		"MEDIA_GROUP_DEBOUNCE_MS", "MAX_CONCURRENT", "REQUEST_TIMEOUT_SECONDS", "HTTP_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadWebDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadWeb()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	assert.InDelta(t, 0.3, cfg.GeminiTemperature, 1e-6)
	assert.Equal(t, ParsePolicyAllOrNothing, cfg.ParsePolicy)
	assert.Equal(t, ":8080", cfg.WebAddr)
	assert.Equal(t, int64(25<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 120*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "banner_analyses", cfg.SupabaseHistoryTable)
	assert.True(t, cfg.PreferIPv4)
	assert.False(t, cfg.StructuredOutput)
	assert.False(t, cfg.HistoryEnabled())
	assert.Empty(t, cfg.GeminiAPIKey)
}

func TestLoadWebOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "  key-from-env  ")
	t.Setenv("PARSE_POLICY", "PER_BLOCK")
	t.Setenv("STRUCTURED_OUTPUT", "true")
	t.Setenv("GEMINI_TEMPERATURE", "0.7")
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co/")
	t.Setenv("SUPABASE_SERVICE_KEY", "service")

	cfg, err := LoadWeb()
	require.NoError(t, err)

	assert.Equal(t, "key-from-env", cfg.GeminiAPIKey)
	assert.Equal(t, ParsePolicyPerBlock, cfg.ParsePolicy)
	assert.True(t, cfg.StructuredOutput)
	assert.InDelta(t, 0.7, cfg.GeminiTemperature, 1e-6)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
	assert.Equal(t, "https://example.supabase.co", cfg.SupabaseURL)
	assert.True(t, cfg.HistoryEnabled())
}

func TestLoadClampsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_CONCURRENT", "0")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "-5")
	t.Setenv("GEMINI_TEMPERATURE", "not-a-number")

	cfg, err := LoadWeb()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.MaxConcurrent)
	assert.Equal(t, 180*time.Second, cfg.RequestTimeout)
	assert.InDelta(t, 0.3, cfg.GeminiTemperature, 1e-6)
}

func TestLoadBotRequiresSecrets(t *testing.T) {
	clearEnv(t)

	_, err := LoadBot()
	require.EqualError(t, err, "TELEGRAM_BOT_TOKEN is required")

	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	_, err = LoadBot()
	require.EqualError(t, err, "GEMINI_API_KEY is required")

	t.Setenv("GEMINI_API_KEY", "key")
	cfg, err := LoadBot()
	require.NoError(t, err)
	assert.Equal(t, "token", cfg.TelegramToken)
	assert.Equal(t, "key", cfg.GeminiAPIKey)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARSE_POLICY", "whatever")

	_, err := LoadWeb()
	require.ErrorContains(t, err, "PARSE_POLICY")

	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("GEMINI_API_KEY", "key")
	_, err = LoadBot()
	require.ErrorContains(t, err, "PARSE_POLICY")

	t.Setenv("PARSE_POLICY", "per-block")
	cfg, err := LoadWeb()
	require.NoError(t, err)
	assert.Equal(t, ParsePolicyPerBlock, cfg.ParsePolicy)

	t.Setenv("GEMINI_TEMPERATURE", "3")
	_, err = LoadWeb()
	require.ErrorContains(t, err, "GEMINI_TEMPERATURE")

	t.Setenv("GEMINI_TEMPERATURE", "0")
	cfg, err = LoadWeb()
	require.NoError(t, err)
	assert.Zero(t, cfg.GeminiTemperature)
}
