// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Session token signing secret
	JWTSecret string `env:"JWT_SECRET,required"`

	// LLM completion provider
	LLMBaseURL string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com"`
	LLMAPIKey  string        `env:"LLM_API_KEY"`
	LLMModel   string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeout time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`

	// Transactional mail provider
	MailBaseURL string        `env:"MAIL_BASE_URL" envDefault:"https://api.resend.com"`
	MailAPIKey  string        `env:"MAIL_API_KEY"`
	MailFrom    string        `env:"MAIL_FROM" envDefault:"Mailsmith <no-reply@mailsmith.app>"`
	MailTimeout time.Duration `env:"MAIL_TIMEOUT" envDefault:"15s"`

	// Free-plan quota: lifetime generations allowed
	FreePlanLifetimeLimit int `env:"FREE_PLAN_LIFETIME_LIMIT" envDefault:"10"`

	// Comma-separated emails allowed to read admin stats
	AdminEmails string `env:"ADMIN_EMAILS" envDefault:""`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitAPIEnabled   bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitAPIPerMinute int  `env:"RATE_LIMIT_API_PER_MINUTE" envDefault:"120"`
	RateLimitAPIBurst     int  `env:"RATE_LIMIT_API_BURST" envDefault:"20"`
	RateLimitAuthEnabled  bool `env:"RATE_LIMIT_AUTH_ENABLED" envDefault:"true"`
	RateLimitAuthRPS      int  `env:"RATE_LIMIT_AUTH_RPS" envDefault:"5"`
	RateLimitAuthBurst    int  `env:"RATE_LIMIT_AUTH_BURST" envDefault:"10"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://app.mailsmith.app")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetAdminEmails parses the comma-separated admin allowlist into a slice.
func (c *Config) GetAdminEmails() []string {
	return splitAndTrim(c.AdminEmails)
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitAndTrim(c.CORSAllowedOrigins)
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
