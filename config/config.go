package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Upstream exchange
	ExchangeBaseURL string
	QuoteCurrency   string

	// Infrastructure
	ListenAddr    string
	MetricsAddr   string
	RedisAddr     string // empty disables the response cache
	RedisPassword string
	SQLitePath    string

	// Paper trading
	InitialCash float64

	// Holdings revaluation cadence
	HoldingsRefresh time.Duration
}

// Load reads configuration from .env (if present) and environment
// variables with sensible defaults.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}

	return &Config{
		ExchangeBaseURL: getEnv("EXCHANGE_BASE_URL", "https://api.bithumb.com/v1"),
		QuoteCurrency:   getEnv("QUOTE_CURRENCY", "KRW"),

		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/account.db"),

		InitialCash: getEnvFloat("INITIAL_CASH", 10_000_000),

		HoldingsRefresh: getEnvDuration("HOLDINGS_REFRESH", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
