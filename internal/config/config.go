package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	// zone names from X-Timezone must resolve on hosts without zoneinfo
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port     string
	LogLevel string
	// LogFormat is json or console
	LogFormat string

	// Database configuration
	DBType            string // mysql, postgres, sqlite, sqlite3, sqlserver
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int

	// Authorizer configuration
	AuthzURL      string
	AuthzClientID string

	// JWTSecret signs bearer tokens (HS256) for clients without cookies
	JWTSecret string

	// Redis backs the notification platform
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	RedisKeyPrefix       string
	NotificationsEnabled bool

	// DefaultTimezone applies when a client sends no X-Timezone header
	DefaultTimezone string

	// Billing service
	BillingURL    string
	BillingAPIKey string

	// AdminOverride grants the pro plan on load to AdminEmail (or everyone when empty)
	AdminOverride bool
	AdminEmail    string

	// RecordIdleMinutes releases a loaded record after this long unused; 0 keeps it
	RecordIdleMinutes int
}

// LoadEnvFile loads variables from a .env style file without overriding ones
// already set in the environment.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "3000"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		DBType:               getEnv("DB_TYPE", "mysql"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "3306"),
		DBDatabase:           getEnv("DB_DATABASE", ""),
		DBUser:               getEnv("DB_USER", ""),
		DBPassword:           getEnv("DB_PASSWORD", ""),
		DBConnectionLimit:    getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		AuthzURL:             getEnv("AUTHZ_URL", ""),
		AuthzClientID:        getEnv("AUTHZ_CLIENT_ID", ""),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvAsInt("REDIS_DB", 0),
		RedisKeyPrefix:       getEnv("REDIS_KEY_PREFIX", "stepio"),
		NotificationsEnabled: getEnvAsBool("NOTIFICATIONS_ENABLED", true),
		DefaultTimezone:      getEnv("DEFAULT_TIMEZONE", "America/Sao_Paulo"),
		BillingURL:           getEnv("BILLING_URL", ""),
		BillingAPIKey:        getEnv("BILLING_API_KEY", ""),
		AdminOverride:        getEnvAsBool("ADMIN_OVERRIDE", false),
		AdminEmail:           strings.ToLower(getEnv("ADMIN_EMAIL", "")),
		RecordIdleMinutes:    getEnvAsInt("RECORD_IDLE_MINUTES", 30),
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.AuthzURL == "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("AUTHZ_URL or JWT_SECRET is required")
	}
	if cfg.AuthzURL != "" && cfg.AuthzClientID == "" {
		return nil, fmt.Errorf("AUTHZ_CLIENT_ID is required with AUTHZ_URL")
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("DEFAULT_TIMEZONE %q: %w", cfg.DefaultTimezone, err)
	}

	return cfg, nil
}

// Location returns the default time zone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RecordIdle is how long a loaded record may sit unused, or 0 for no limit.
func (c *Config) RecordIdle() time.Duration {
	if c.RecordIdleMinutes <= 0 {
		return 0
	}
	return time.Duration(c.RecordIdleMinutes) * time.Minute
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
