package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Application base URL (for email links and Stripe redirects)
	BaseURL string

	// SMTP Configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Quote Provider Configuration
	QuoteProvider       string // "openai" or "mock"
	OpenAIAPIKey        string
	OpenAIModel         string
	QuoteMaxRetries     int
	QuoteRetryBaseDelay time.Duration
	QuoteRequestTimeout time.Duration

	// Stripe Billing Configuration
	// These are required when billing is enabled in production.
	// In development, billing handlers function as stubs if these are empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)
	StripePremiumPrice  string // Price ID for the premium subscription

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
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

		// SMTP defaults for Mailhog (development)
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@habitflow.app"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "HabitFlow"),

		// Quote provider defaults
		QuoteProvider:       getEnv("QUOTE_PROVIDER", "mock"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		QuoteMaxRetries:     getEnvInt("QUOTE_MAX_RETRIES", 3),
		QuoteRetryBaseDelay: getEnvDuration("QUOTE_RETRY_BASE_DELAY", 1*time.Second),
		QuoteRequestTimeout: getEnvDuration("QUOTE_REQUEST_TIMEOUT", 30*time.Second),

		// Stripe billing (optional — stubs work without these)
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePremiumPrice:  getEnv("STRIPE_PREMIUM_PRICE_ID", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Validate quote provider configuration
	if cfg.QuoteProvider == "openai" {
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when QUOTE_PROVIDER is 'openai'")
		}
	} else if cfg.QuoteProvider != "mock" {
		return nil, fmt.Errorf("QUOTE_PROVIDER must be either 'openai' or 'mock', got: %s", cfg.QuoteProvider)
	}

	// Stripe settings come as a set: a webhook secret without an API key (or
	// vice versa) is a deployment mistake, not a disabled feature.
	if cfg.StripeSecretKey != "" || cfg.StripeWebhookSecret != "" || cfg.StripePremiumPrice != "" {
		if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" || cfg.StripePremiumPrice == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY, STRIPE_WEBHOOK_SECRET and STRIPE_PREMIUM_PRICE_ID must be set together")
		}
	}

	return cfg, nil
}

// BillingEnabled reports whether Stripe is fully configured.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
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
