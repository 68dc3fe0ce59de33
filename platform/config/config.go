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
// Module-specific config interfaces (principle of least privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthServiceConfig provides settings needed by the staff auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

// EmailConfig provides settings for outbound email.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// PortalConfig provides settings for the patient portal.
type PortalConfig interface {
	GetPortalBaseURL() string
	GetVerifyTokenTTL() time.Duration
	GetPortalTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq background job queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// StorageConfig provides settings for MinIO document storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketPatientDocuments() string
	IsMinIOEnabled() bool
}

// OnboardingConfig provides settings for the onboarding card catalog.
type OnboardingConfig interface {
	GetOnboardingCardsPath() string
}

// =============================================================================
// Main config struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env         string
	HTTPAddr    string
	DatabaseURL string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string

	PortalBaseURL  string
	VerifyTokenTTL time.Duration
	PortalTokenTTL time.Duration

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	MinIOEndpoint              string
	MinIOAccessKey             string
	MinIOSecretKey             string
	MinIOUseSSL                bool
	MinIOMaxFileSize           int64
	MinioBucketPatientDocuments string

	OnboardingCardsPath string
}

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig / AuthServiceConfig implementation
func (c *Config) GetJWTAccessSecret() string        { return c.JWTAccessSecret }
func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool        { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string          { return c.SMTPHost }
func (c *Config) GetSMTPPort() int             { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string      { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string      { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string     { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string  { return c.EmailFromAddress }

// PortalConfig implementation
func (c *Config) GetPortalBaseURL() string          { return c.PortalBaseURL }
func (c *Config) GetVerifyTokenTTL() time.Duration  { return c.VerifyTokenTTL }
func (c *Config) GetPortalTokenTTL() time.Duration  { return c.PortalTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64 {
	return c.MinIOMaxFileSize
}
func (c *Config) GetMinioBucketPatientDocuments() string {
	return c.MinioBucketPatientDocuments
}
func (c *Config) IsMinIOEnabled() bool {
	return c.MinIOEndpoint != "" && c.MinIOAccessKey != "" && c.MinIOSecretKey != ""
}

// OnboardingConfig implementation
func (c *Config) GetOnboardingCardsPath() string { return c.OnboardingCardsPath }

// Load reads configuration from the environment. A .env file is loaded
// first when present so local development needs no exported variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		CORSAllowAll:   getBool("CORS_ALLOW_ALL", false),
		CORSOrigins:    splitCSV(getEnv("CORS_ORIGINS", "")),
		CORSAllowCreds: getBool("CORS_ALLOW_CREDENTIALS", true),

		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		AccessTokenTTL:   mustDuration(getEnv("JWT_ACCESS_TTL", "15m")),
		RefreshTokenTTL:  mustDuration(getEnv("JWT_REFRESH_TTL", "720h")),

		EmailEnabled:     getBool("EMAIL_ENABLED", false),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getInt("SMTP_PORT", 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Smile Design Turkey"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@smiledesignturkey.example"),

		PortalBaseURL:  getEnv("PORTAL_BASE_URL", "http://localhost:3000"),
		VerifyTokenTTL: mustDuration(getEnv("VERIFY_TOKEN_TTL", "48h")),
		PortalTokenTTL: mustDuration(getEnv("PORTAL_TOKEN_TTL", "4320h")),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: getBool("REDIS_TLS_INSECURE", false),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: getInt("ASYNQ_CONCURRENCY", 10),

		MinIOEndpoint:               getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:              getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:              getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                 getBool("MINIO_USE_SSL", false),
		MinIOMaxFileSize:            getInt64("MINIO_MAX_FILE_SIZE", 25<<20),
		MinioBucketPatientDocuments: getEnv("MINIO_BUCKET_PATIENT_DOCUMENTS", "patient-documents"),

		OnboardingCardsPath: getEnv("ONBOARDING_CARDS_PATH", "config/onboarding_cards.yaml"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt64(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustDuration(v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Sprintf("invalid duration %q: %v", v, err))
	}
	return d
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
