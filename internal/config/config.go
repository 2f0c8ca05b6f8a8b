// Package config reads the service configuration from the environment.
// Callers load a .env file with godotenv before calling FromEnv.
package config

import (
	"os"
	"strings"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type WahaConfig struct {
	BaseURL            string
	APIKey             string
	Session            string
	DefaultCountryCode string
}

type Config struct {
	Env      string
	Port     string
	AppURL   string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	Stripe StripeConfig

	FirebaseCredentialsPath string
	AdminEmails             []string

	SMTP SMTPConfig
	Waha WahaConfig

	StudioEmail          string
	StudioWhatsappChatID string
	// RRULE for the pending request digest; empty disables it
	DigestRule string
}

// FromEnv builds a Config from environment variables, applying defaults
func FromEnv() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		AppURL:   strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			Currency:      strings.ToLower(getEnv("STRIPE_CURRENCY", "usd")),
		},

		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json"),
		AdminEmails:             splitList(os.Getenv("ADMIN_EMAILS")),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnv("SMTP_PORT", "587"),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("EMAIL_FROM"),
		},
		Waha: WahaConfig{
			BaseURL:            getEnv("WAHA_BASE_URL", "http://waha:3000"),
			APIKey:             os.Getenv("WAHA_API_KEY"),
			Session:            getEnv("WAHA_SESSION", "default"),
			DefaultCountryCode: getEnv("WAHA_DEFAULT_COUNTRY_CODE", "1"),
		},

		StudioEmail:          os.Getenv("STUDIO_EMAIL"),
		StudioWhatsappChatID: os.Getenv("STUDIO_WHATSAPP_CHAT_ID"),
		DigestRule:           os.Getenv("STUDIO_DIGEST_RRULE"),
	}
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList parses a comma separated list, lower-casing and dropping empty entries
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
