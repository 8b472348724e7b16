package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Public origin of the site, used in structured data and sitemaps
	BaseURL string

	// Record store (Airtable) credentials
	AirtableAPIToken string
	AirtableBaseID   string
	AirtableTimeout  time.Duration

	// Rate limiting for the quote API
	QuoteRateLimit  int
	QuoteRateWindow time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string

	// Graceful shutdown
	ShutdownTimeout time.Duration
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Base URL defaults to localhost for development
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		AirtableTimeout: getEnvDuration("AIRTABLE_TIMEOUT", 60*time.Second),

		QuoteRateLimit:  getEnvInt("QUOTE_RATE_LIMIT", 20),
		QuoteRateWindow: getEnvDuration("QUOTE_RATE_WINDOW", 15*time.Minute),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	// Required
	cfg.AirtableAPIToken = os.Getenv("AIRTABLE_API_TOKEN")
	if cfg.AirtableAPIToken == "" {
		return nil, fmt.Errorf("AIRTABLE_API_TOKEN is required")
	}
	cfg.AirtableBaseID = os.Getenv("AIRTABLE_BASE_ID")
	if cfg.AirtableBaseID == "" {
		return nil, fmt.Errorf("AIRTABLE_BASE_ID is required")
	}

	if cfg.QuoteRateLimit < 1 {
		return nil, fmt.Errorf("QUOTE_RATE_LIMIT must be at least 1, got: %d", cfg.QuoteRateLimit)
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
