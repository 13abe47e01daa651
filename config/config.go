package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Release  bool
	LogLevel string
	LogFile  string

	DatabaseURL   string
	RedisURL      string
	RedisPassword string
	ChangeBus     string

	JWTSecret  string
	SessionTTL time.Duration

	CORSOrigins []string

	TwitchClientID     string
	TwitchClientSecret string
	TwitchTokenURL     string
	CatalogBaseURL     string
	CatalogPlatforms   string
	SearchDebounce     time.Duration

	UseHTTPS    bool
	TLSCertFile string
	TLSKeyFile  string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Port:               get("PORT", "8080"),
		Release:            get("GIN_MODE", "") == "release",
		LogLevel:           get("LOG_LEVEL", "info"),
		LogFile:            get("LOG_FILE", "logs/app.log"),
		DatabaseURL:        get("DATABASE_URL", ""),
		RedisURL:           get("REDIS_URL", ""),
		RedisPassword:      get("REDIS_PASSWORD", ""),
		ChangeBus:          get("CHANGE_BUS", "noop"),
		JWTSecret:          get("JWT_SECRET", ""),
		CORSOrigins:        splitList(get("CORS_ORIGINS", "http://localhost:4200")),
		TwitchClientID:     get("TWITCH_CLIENT_ID", ""),
		TwitchClientSecret: get("TWITCH_CLIENT_SECRET", ""),
		TwitchTokenURL:     get("TWITCH_TOKEN_URL", "https://id.twitch.tv/oauth2/token"),
		CatalogBaseURL:     get("CATALOG_BASE_URL", "https://api.igdb.com"),
		CatalogPlatforms:   get("CATALOG_PLATFORMS", "4"),
		UseHTTPS:           get("USE_HTTPS", "") == "true",
		TLSCertFile:        get("TLS_CERT_FILE", ""),
		TLSKeyFile:         get("TLS_KEY_FILE", ""),
	}

	var err error
	if cfg.SessionTTL, err = time.ParseDuration(get("SESSION_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}
	if cfg.SearchDebounce, err = time.ParseDuration(get("SEARCH_DEBOUNCE", "600ms")); err != nil {
		return nil, fmt.Errorf("SEARCH_DEBOUNCE: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing required environment variable: DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required environment variable: JWT_SECRET")
	}
	switch cfg.ChangeBus {
	case "noop", "redis":
	default:
		return nil, fmt.Errorf("CHANGE_BUS must be noop or redis, got %q", cfg.ChangeBus)
	}
	if cfg.ChangeBus == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("CHANGE_BUS=redis requires REDIS_URL")
	}
	return cfg, nil
}

// CatalogEnabled reports whether both relay secrets are configured.
func (c *Config) CatalogEnabled() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
