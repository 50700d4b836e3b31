package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Environment string
	ServerPort  string
	AppBaseURL  string

	DatabaseType string
	DatabasePath string
	DatabaseURL  string

	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustProxy        bool

	UploadMaxSize  int64
	ImageStorage   string // "local" or "s3"
	ImageLocalDir  string
	ImageS3Bucket  string
	ImageS3Prefix  string

	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	SNSSenderID  string
	SMSEnabled   bool

	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	BootstrapAdminName     string

	GoogleClientID       string
	GoogleClientSecret   string
	OAuthRedirectBaseURL string
	OAuthStateSecret     string

	PendingRetention time.Duration

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	appBaseURL := getEnv("APP_BASE_URL", "http://localhost:8080")

	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		ServerPort:  getEnv("PORT", "8080"),
		AppBaseURL:  appBaseURL,

		DatabaseType: getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath: getEnv("DB_PATH", "./familytree.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		TokenTTL:    getEnvDuration("TOKEN_TTL", 12*time.Hour),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 20),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		TrustProxy:        getEnvBool("TRUST_PROXY", false),

		UploadMaxSize: int64(getEnvInt("UPLOAD_MAX_SIZE", 5*1024*1024)), // 5MB
		ImageStorage:  getEnv("IMAGE_STORAGE", "local"),
		ImageLocalDir: getEnv("IMAGE_DIR", "./data/images"),
		ImageS3Bucket: getEnv("IMAGE_S3_BUCKET", ""),
		ImageS3Prefix: getEnv("IMAGE_S3_PREFIX", "family-images/"),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Family Tree"),
		SNSSenderID:  getEnv("SNS_SENDER_ID", ""),
		SMSEnabled:   getEnvBool("SMS_ENABLED", false),

		BootstrapAdminEmail:    getEnv("ADMIN_EMAIL", ""),
		BootstrapAdminPassword: getEnv("ADMIN_PASSWORD", ""),
		BootstrapAdminName:     getEnv("ADMIN_NAME", "Administrator"),

		GoogleClientID:       getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   getEnv("GOOGLE_CLIENT_SECRET", ""),
		OAuthRedirectBaseURL: getEnv("OAUTH_REDIRECT_BASE_URL", appBaseURL),
		OAuthStateSecret:     getEnv("OAUTH_STATE_SECRET", ""),

		PendingRetention: getEnvDuration("PENDING_RETENTION", 90*24*time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Validate checks the configuration for values the server cannot start with.
// In development a missing JWT secret is replaced with a fixed one.
func (c *Config) Validate() error {
	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3", "":
		if c.DatabasePath == "" {
			return errors.New("DB_PATH is required for sqlite")
		}
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return errors.New("JWT_SECRET is required outside development")
		}
		c.JWTSecret = "development-only-secret"
	}
	if c.OAuthStateSecret == "" {
		c.OAuthStateSecret = c.JWTSecret
	}

	switch c.ImageStorage {
	case "local":
		if c.ImageLocalDir == "" {
			return errors.New("IMAGE_DIR is required for local image storage")
		}
	case "s3":
		if c.ImageS3Bucket == "" {
			return errors.New("IMAGE_S3_BUCKET is required for s3 image storage")
		}
	default:
		return fmt.Errorf("unsupported image storage: %s", c.ImageStorage)
	}

	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.UploadMaxSize <= 0 {
		return errors.New("UPLOAD_MAX_SIZE must be positive")
	}
	return nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("Invalid boolean in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Invalid duration in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
