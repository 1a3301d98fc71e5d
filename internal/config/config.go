package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	// Gateway settings mirroring the merchant-facing options surface.
	Enabled     bool
	Title       string
	Description string
	Testmode    bool
	PayexEmail  string
	PayexSecret string

	// Host platform return targets for the hosted checkout.
	AcceptURL   string
	RejectURL   string
	CallbackURL string

	RedisURL           string
	CORSAllowedOrigins []string

	RemoteTimeout         time.Duration
	WebhookReplayTTL      time.Duration
	LockTTL               time.Duration
	LockRetryBackoff      time.Duration
	CollectorInterval     time.Duration
	MandateMaxAmountFloor int64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		Enabled:            parseBool(valueOrDefault(k.String("PAYEX_ENABLED"), "true")),
		Title:              valueOrDefault(k.String("PAYEX_TITLE"), "Payex"),
		Description:        valueOrDefault(k.String("PAYEX_DESCRIPTION"), "Pay via Payex using Online Banking, Cards, EWallets and Instalments"),
		Testmode:           parseBool(k.String("PAYEX_TESTMODE")),
		PayexEmail:         strings.TrimSpace(k.String("PAYEX_EMAIL")),
		PayexSecret:        k.String("PAYEX_SECRET_KEY"),
		AcceptURL:          strings.TrimSpace(k.String("PAYEX_ACCEPT_URL")),
		RejectURL:          strings.TrimSpace(k.String("PAYEX_REJECT_URL")),
		CallbackURL:        strings.TrimSpace(k.String("PAYEX_CALLBACK_URL")),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		RemoteTimeout:      parseDuration(k.String("PAYEX_REMOTE_TIMEOUT"), "45s"),
		WebhookReplayTTL:   parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		LockTTL:            parseDuration(k.String("LOCK_TTL"), "30s"),
		LockRetryBackoff:   parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		CollectorInterval:  parseDuration(k.String("COLLECTOR_INTERVAL"), "1h"),
		MandateMaxAmountFloor: parseInt64(
			k.String("PAYEX_MANDATE_MAX_AMOUNT_FLOOR"), 99999999),
	}

	if cfg.PayexEmail == "" {
		return nil, errors.New("PAYEX_EMAIL is required")
	}
	if cfg.PayexSecret == "" {
		return nil, errors.New("PAYEX_SECRET_KEY is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.CallbackURL == "" {
		return nil, errors.New("PAYEX_CALLBACK_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
