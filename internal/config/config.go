package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	LogLevel           string
	HTTPListenAddr     string
	StorageBackend     string
	DatabaseURL        string
	SQLitePath         string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisTLS           bool
	MetricsNamespace   string
	ReplyDelay         time.Duration
	SnapshotTTL        time.Duration
	TranscriptTTL      time.Duration
	DisplayCurrency    string
	FXBaseURL          string
	FXTimeout          time.Duration
	FXCacheTTL         time.Duration
	KnownServices      []string
	RateLimitPerMinute int
	WhatsAppEnabled    bool
	WhatsAppStorePath  string
	WhatsAppLogLevel   string
}

// Load returns configuration populated from environment variables with fallbacks.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:            getenvDefault("APP_ENV", "development"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		HTTPListenAddr:    getenvDefault("HTTP_LISTEN_ADDR", ":8080"),
		StorageBackend:    strings.ToLower(getenvDefault("STORAGE_BACKEND", BackendPostgres)),
		DatabaseURL:       trimmedEnv("DATABASE_URL"),
		SQLitePath:        getenvDefault("SQLITE_PATH", "data/subtrack.db"),
		RedisAddr:         getenvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     trimmedEnv("REDIS_PASSWORD"),
		MetricsNamespace:  getenvDefault("METRICS_NAMESPACE", "subtrack"),
		DisplayCurrency:   strings.ToUpper(getenvDefault("DISPLAY_CURRENCY", "USD")),
		FXBaseURL:         getenvDefault("FX_BASE_URL", "https://open.er-api.com/v6/latest"),
		KnownServices:     splitAndTrim(trimmedEnv("KNOWN_SERVICES")),
		WhatsAppStorePath: getenvDefault("WHATSAPP_STORE_PATH", "data/wa-store.db"),
		WhatsAppLogLevel:  getenvDefault("WHATSAPP_LOG_LEVEL", "INFO"),
	}

	var err error
	durations := []struct {
		key      string
		fallback string
		dest     *time.Duration
	}{
		{"REPLY_DELAY", "800ms", &cfg.ReplyDelay},
		{"SNAPSHOT_TTL", "30s", &cfg.SnapshotTTL},
		{"TRANSCRIPT_TTL", "24h", &cfg.TranscriptTTL},
		{"FX_TIMEOUT", "10s", &cfg.FXTimeout},
		{"FX_CACHE_TTL", "6h", &cfg.FXCacheTTL},
	}
	for _, d := range durations {
		if *d.dest, err = time.ParseDuration(getenvDefault(d.key, d.fallback)); err != nil {
			return nil, fmt.Errorf("invalid %s duration: %w", d.key, err)
		}
	}

	if redisDBStr := getenvDefault("REDIS_DB", "0"); redisDBStr != "" {
		db, convErr := strconv.Atoi(redisDBStr)
		if convErr != nil {
			return nil, fmt.Errorf("invalid REDIS_DB value: %w", convErr)
		}
		cfg.RedisDB = db
	}

	if limitStr := getenvDefault("RATE_LIMIT_PER_MINUTE", "30"); limitStr != "" {
		limit, convErr := strconv.Atoi(limitStr)
		if convErr != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE value: %w", convErr)
		}
		if limit < 0 {
			limit = 0
		}
		cfg.RateLimitPerMinute = limit
	}

	cfg.RedisTLS = strings.EqualFold(getenvDefault("REDIS_TLS", "false"), "true")
	cfg.WhatsAppEnabled = strings.EqualFold(getenvDefault("WHATSAPP_ENABLED", "false"), "true")

	switch cfg.StorageBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case BackendSQLite:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	cfg.FXBaseURL = strings.TrimRight(cfg.FXBaseURL, "/")

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func splitAndTrim(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}

func trimmedEnv(key string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return ""
}
