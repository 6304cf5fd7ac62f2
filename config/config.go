// Package config loads application configuration from environment
// variables, with optional .env support for local development.
package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// DefaultCommission is the commission rate applied when a pair config does
// not override it: 0.1%.
const DefaultCommission = "0.001"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	SQLitePath    string
	RedisAddr     string // empty disables the dashboard event stream
	RedisPassword string
	MetricsAddr   string // empty disables the metrics server

	// Admin API
	AdminAddr  string
	TOTPSecret string // empty disables auth on mutating endpoints
	LogLevel   string

	// Backtest defaults
	Commission string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}

	return &Config{
		SQLitePath:    getEnv("SQLITE_PATH", "data/klines.db"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ""),

		AdminAddr:  getEnv("ADMIN_ADDR", ":8080"),
		TOTPSecret: getEnv("ADMIN_TOTP_SECRET", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		Commission: getEnv("COMMISSION_RATE", DefaultCommission),
	}
}

// CommissionRate parses the configured commission into a decimal rate.
// An unparseable value is a fatal misconfiguration, not something to
// silently default.
func (c *Config) CommissionRate() decimal.Decimal {
	d, err := decimal.NewFromString(c.Commission)
	if err != nil {
		log.Fatalf("[config] invalid COMMISSION_RATE %q: %v", c.Commission, err)
	}
	return d
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
