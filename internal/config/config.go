package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr  string
	ServerPort  int
	Environment string
	AppBaseURL  string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Session
	SessionSecret string
	SessionIssuer string
	SessionTTL    time.Duration

	// Email delivery
	EmailUser     string
	EmailPassword string
	EmailFromName string
	SMTPHost      string
	SMTPPort      int
	SMTPSecure    bool

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr:  getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:  getEnvInt("SERVER_PORT", 5000),
		Environment: getEnv("APP_ENV", "development"),
		AppBaseURL:  getEnv("APP_BASE_URL", "http://localhost:5000"),

		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "vidlink_identity"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Session defaults
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionIssuer: getEnv("SESSION_ISSUER", "vidlink-identity"),
		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),

		// Email delivery; app password preferred over account password
		EmailUser:     getEnv("EMAIL_USER", ""),
		EmailPassword: getEnv("EMAIL_APP_PASSWORD", getEnv("EMAIL_PASSWORD", "")),
		EmailFromName: getEnv("EMAIL_FROM_NAME", "VidLink"),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPSecure:    getEnvBool("SMTP_SECURE", false),

		// Google OAuth (optional)
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", ""),
	}

	// Validate required fields
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production mode. The flag
// gates whether raw verification codes may be echoed in responses and
// whether the mock sender may stand in for real delivery.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasEmailCredentials returns true if real sender credentials are configured.
func (c *Config) HasEmailCredentials() bool {
	return c.EmailUser != "" && c.EmailPassword != ""
}

// HasGoogleOAuth returns true if Google OAuth is configured.
func (c *Config) HasGoogleOAuth() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
