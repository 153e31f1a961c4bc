package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
	assert.Equal(t, BackendSQLite, cfg.StorageBackend)
	assert.Equal(t, 800*time.Millisecond, cfg.ReplyDelay)
	assert.Equal(t, 24*time.Hour, cfg.TranscriptTTL)
	assert.Equal(t, "USD", cfg.DisplayCurrency)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.False(t, cfg.WhatsAppEnabled)
	assert.Nil(t, cfg.KnownServices)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", " postgres://localhost/subtrack ")
	t.Setenv("REPLY_DELAY", "0s")
	t.Setenv("DISPLAY_CURRENCY", "eur")
	t.Setenv("FX_BASE_URL", "http://fx.local/latest/")
	t.Setenv("KNOWN_SERVICES", "Mubi, ,Tidal")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TLS", "TRUE")
	t.Setenv("WHATSAPP_ENABLED", "true")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.StorageBackend)
	assert.Equal(t, "postgres://localhost/subtrack", cfg.DatabaseURL)
	assert.Zero(t, cfg.ReplyDelay)
	assert.Equal(t, "EUR", cfg.DisplayCurrency)
	assert.Equal(t, "http://fx.local/latest", cfg.FXBaseURL)
	assert.Equal(t, []string{"Mubi", "Tidal"}, cfg.KnownServices)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.RedisTLS)
	assert.True(t, cfg.WhatsAppEnabled)
	assert.Zero(t, cfg.RateLimitPerMinute)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "postgres without url", env: map[string]string{"STORAGE_BACKEND": "postgres"}, want: "DATABASE_URL is required"},
		{name: "bad backend", env: map[string]string{"STORAGE_BACKEND": "mongo"}, want: "invalid STORAGE_BACKEND"},
		{name: "bad duration", env: map[string]string{"STORAGE_BACKEND": "sqlite", "REPLY_DELAY": "soon"}, want: "invalid REPLY_DELAY"},
		{name: "bad redis db", env: map[string]string{"STORAGE_BACKEND": "sqlite", "REDIS_DB": "x"}, want: "invalid REDIS_DB"},
		{name: "bad rate limit", env: map[string]string{"STORAGE_BACKEND": "sqlite", "RATE_LIMIT_PER_MINUTE": "lots"}, want: "invalid RATE_LIMIT_PER_MINUTE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
