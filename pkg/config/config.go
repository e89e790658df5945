package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven process settings. Trading parameters live
// in the runtime settings store, not here.
type Config struct {
	Port string

	// Binance USDT-M futures credentials
	BinanceAPIKey    string
	BinanceAPISecret string

	// Runtime settings seed file (YAML, optional)
	SettingsFile string

	// Cycle scheduling: 0 disables the built-in scheduler.
	CycleInterval time.Duration

	// Start with the running flag set.
	AutoStart bool

	// Open-trade reconciliation outside of cycles: 0 disables it.
	ReconcileInterval time.Duration

	// Admin API: mutating routes require a bearer JWT when set.
	AdminJWTSecret string

	// Logging
	LogLevel  string
	LogFormat string
	LogDev    bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:              getEnv("PORT", "8000"),
		BinanceAPIKey:     os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret:  getEnv("BINANCE_SECRET_KEY", os.Getenv("BINANCE_API_SECRET")),
		SettingsFile:      getEnv("SETTINGS_FILE", "settings.yaml"),
		CycleInterval:     getEnvDuration("CYCLE_INTERVAL", 0),
		AutoStart:         getEnv("AUTO_START", "false") == "true",
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 5*time.Minute),
		AdminJWTSecret:    os.Getenv("ADMIN_JWT_SECRET"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "json")),
		LogDev:            getEnv("LOG_DEV", "false") == "true",
	}, nil
}

// HasCredentials reports whether both API key and secret are present.
func (c *Config) HasCredentials() bool {
	return c.BinanceAPIKey != "" && c.BinanceAPISecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare numbers are seconds.
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}
