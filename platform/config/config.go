// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides Redis connection settings for the job queue and
// the keyed TTL store.
type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// WhatsAppConfig provides settings for the WhatsApp Cloud API client and
// webhook verification.
type WhatsAppConfig interface {
	GetWhatsAppAPIBaseURL() string
	GetWhatsAppAccessToken() string
	GetWhatsAppAppSecret() string
	GetWhatsAppSendTimeout() time.Duration
	GetWhatsAppSendRetries() int
}

// AIConfig provides settings for the LLM extraction providers.
type AIConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetOpenAICompatBaseURL() string
	GetOpenAICompatAPIKey() string
	GetOpenAICompatModel() string
	IsAIEnabled() bool
}

// EmailConfig provides settings for approval notification email.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetEmailEnabled() bool
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// QuoteConfig provides quote lifecycle settings.
type QuoteConfig interface {
	GetQuoteValidity() time.Duration
	GetMessagingWindow() time.Duration
}

// WorkerConfig provides settings for the background worker.
type WorkerConfig interface {
	GetWorkerConcurrency() int
	GetWindowSweepInterval() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	JWTAccessSecret     string
	CORSAllowAll        bool
	CORSOrigins         []string
	CORSAllowCreds      bool
	WhatsAppAPIBaseURL  string
	WhatsAppAccessToken string
	WhatsAppAppSecret   string
	WhatsAppSendTimeout time.Duration
	WhatsAppSendRetries int
	GeminiAPIKey        string
	GeminiModel         string
	OpenAICompatBaseURL string
	OpenAICompatAPIKey  string
	OpenAICompatModel   string
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	EmailFromName       string
	EmailFromAddress    string
	EmailEnabled        bool
	QuoteValidity       time.Duration
	MessagingWindow     time.Duration
	WorkerConcurrency   int
	WindowSweepInterval time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisAddr() string     { return c.RedisAddr }
func (c *Config) GetRedisPassword() string { return c.RedisPassword }
func (c *Config) GetRedisDB() int          { return c.RedisDB }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppAPIBaseURL() string         { return c.WhatsAppAPIBaseURL }
func (c *Config) GetWhatsAppAccessToken() string        { return c.WhatsAppAccessToken }
func (c *Config) GetWhatsAppAppSecret() string          { return c.WhatsAppAppSecret }
func (c *Config) GetWhatsAppSendTimeout() time.Duration { return c.WhatsAppSendTimeout }
func (c *Config) GetWhatsAppSendRetries() int           { return c.WhatsAppSendRetries }

// AIConfig implementation
func (c *Config) GetGeminiAPIKey() string        { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string         { return c.GeminiModel }
func (c *Config) GetOpenAICompatBaseURL() string { return c.OpenAICompatBaseURL }
func (c *Config) GetOpenAICompatAPIKey() string  { return c.OpenAICompatAPIKey }
func (c *Config) GetOpenAICompatModel() string   { return c.OpenAICompatModel }
func (c *Config) IsAIEnabled() bool {
	return c.GeminiAPIKey != "" || c.OpenAICompatAPIKey != ""
}

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// QuoteConfig implementation
func (c *Config) GetQuoteValidity() time.Duration   { return c.QuoteValidity }
func (c *Config) GetMessagingWindow() time.Duration { return c.MessagingWindow }

// WorkerConfig implementation
func (c *Config) GetWorkerConcurrency() int             { return c.WorkerConcurrency }
func (c *Config) GetWindowSweepInterval() time.Duration { return c.WindowSweepInterval }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             mustInt(getEnv("REDIS_DB", "0")),
		JWTAccessSecret:     getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		CORSAllowCreds:      strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		WhatsAppAPIBaseURL:  getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v19.0"),
		WhatsAppAccessToken: getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppAppSecret:   getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppSendTimeout: mustDuration(getEnv("WHATSAPP_SEND_TIMEOUT", "10s")),
		WhatsAppSendRetries: mustInt(getEnv("WHATSAPP_SEND_RETRIES", "3")),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAICompatBaseURL: getEnv("OPENAI_COMPAT_BASE_URL", "https://api.openai.com/v1"),
		OpenAICompatAPIKey:  getEnv("OPENAI_COMPAT_API_KEY", ""),
		OpenAICompatModel:   getEnv("OPENAI_COMPAT_MODEL", "gpt-4o-mini"),
		SMTPHost:            smtpHost,
		SMTPPort:            mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:        getEnv("SMTP_USERNAME", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		EmailFromName:       getEnv("EMAIL_FROM_NAME", "OrcaZap"),
		EmailFromAddress:    getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailEnabled:        emailEnabled && smtpHost != "",
		QuoteValidity:       mustDuration(getEnv("QUOTE_VALIDITY", "24h")),
		MessagingWindow:     mustDuration(getEnv("MESSAGING_WINDOW", "24h")),
		WorkerConcurrency:   mustInt(getEnv("WORKER_CONCURRENCY", "10")),
		WindowSweepInterval: mustDuration(getEnv("WINDOW_SWEEP_INTERVAL", "5m")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.WhatsAppAccessToken == "" {
		return nil, fmt.Errorf("WHATSAPP_ACCESS_TOKEN is required")
	}
	if cfg.WhatsAppAppSecret == "" {
		return nil, fmt.Errorf("WHATSAPP_APP_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
