// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StorageDriverLocal = "local"
	StorageDriverMinIO = "minio"
)

// Config holds all configuration for the api, worker and scheduler processes
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Server    ServerConfig
	Logging   LoggingConfig
	CORS      CORSConfig
	JWT       JWTConfig
	SMTP      SMTPConfig
	Storage   StorageConfig
	Study     StudyConfig
	Scheduler SchedulerConfig
	Payments  PaymentsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the Redis address in host:port form
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port          int
	MaxUploadSize int64
	// TransferTimeout replaces the server read/write timeouts for material uploads and downloads
	TransferTimeout time.Duration
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// JWTConfig holds JWT token configuration
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// SMTPConfig holds SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// StorageConfig selects and configures the material file store
type StorageConfig struct {
	Driver         string
	MediaBasePath  string
	MediaBaseURL   string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
}

// StudyConfig holds study-session settings
type StudyConfig struct {
	IdleTimeout time.Duration
}

// SchedulerConfig holds cron specs for background maintenance
type SchedulerConfig struct {
	SweepSchedule              string
	SubscriptionExpirySchedule string
	TokenCleanupSchedule       string
}

// PaymentsConfig holds simulated payment settings
type PaymentsConfig struct {
	VerifyDelay time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// .env is optional
	godotenv.Load()

	cfg := &Config{}
	var err error

	// Database configuration
	if cfg.Database.Host, err = required("DB_HOST"); err != nil {
		return nil, err
	}
	dbPortStr, err := required("DB_PORT")
	if err != nil {
		return nil, err
	}
	if cfg.Database.Port, err = strconv.Atoi(dbPortStr); err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	if cfg.Database.User, err = required("DB_USER"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = required("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.DBName, err = required("DB_NAME"); err != nil {
		return nil, err
	}

	// Server configuration
	if cfg.Server.Port, err = intOrDefault("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	maxUploadMB, err := intOrDefault("MAX_UPLOAD_SIZE_MB", 100)
	if err != nil {
		return nil, err
	}
	cfg.Server.MaxUploadSize = int64(maxUploadMB) << 20
	if cfg.Server.TransferTimeout, err = durationOrDefault("SERVER_TRANSFER_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}

	cfg.Logging.Level = stringOrDefault("LOG_LEVEL", "info")
	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// JWT configuration
	if cfg.JWT.Secret, err = required("JWT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.JWT.AccessTokenExpiry, err = durationOrDefault("JWT_ACCESS_TOKEN_EXPIRY", time.Hour); err != nil {
		return nil, err
	}
	if cfg.JWT.RefreshTokenExpiry, err = durationOrDefault("JWT_REFRESH_TOKEN_EXPIRY", 7*24*time.Hour); err != nil {
		return nil, err
	}

	// Redis configuration, used by asynq and the scheduler locks
	cfg.Redis.Host = stringOrDefault("REDIS_HOST", "localhost")
	if cfg.Redis.Port, err = intOrDefault("REDIS_PORT", 6379); err != nil {
		return nil, err
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if cfg.Redis.DB, err = intOrDefault("REDIS_DB", 0); err != nil {
		return nil, err
	}

	// SMTP configuration, used by the worker
	cfg.SMTP.Host = stringOrDefault("SMTP_HOST", "localhost")
	if cfg.SMTP.Port, err = intOrDefault("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	cfg.SMTP.Username = os.Getenv("SMTP_USERNAME")
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	cfg.SMTP.From = stringOrDefault("SMTP_FROM", "noreply@learnsy.app")

	// Storage configuration
	cfg.Storage.Driver = strings.ToLower(stringOrDefault("STORAGE_DRIVER", StorageDriverLocal))
	cfg.Storage.MediaBasePath = stringOrDefault("MEDIA_BASE_PATH", "./uploads")
	cfg.Storage.MediaBaseURL = strings.TrimRight(stringOrDefault("MEDIA_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Server.Port)), "/")
	cfg.Storage.MinIOEndpoint = os.Getenv("MINIO_ENDPOINT")
	cfg.Storage.MinIOAccessKey = os.Getenv("MINIO_ACCESS_KEY")
	cfg.Storage.MinIOSecretKey = os.Getenv("MINIO_SECRET_KEY")
	cfg.Storage.MinIOBucket = stringOrDefault("MINIO_BUCKET", "learnsy-materials")
	if cfg.Storage.MinIOUseSSL, err = boolOrDefault("MINIO_USE_SSL", false); err != nil {
		return nil, err
	}
	switch cfg.Storage.Driver {
	case StorageDriverLocal:
	case StorageDriverMinIO:
		if cfg.Storage.MinIOEndpoint == "" {
			return nil, fmt.Errorf("MINIO_ENDPOINT is required when STORAGE_DRIVER=minio")
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER: %q", cfg.Storage.Driver)
	}

	// Study sessions and background maintenance
	if cfg.Study.IdleTimeout, err = durationOrDefault("STUDY_IDLE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	cfg.Scheduler.SweepSchedule = stringOrDefault("SWEEP_SCHEDULE", "@every 1m")
	cfg.Scheduler.SubscriptionExpirySchedule = stringOrDefault("SUBSCRIPTION_EXPIRY_SCHEDULE", "@every 10m")
	cfg.Scheduler.TokenCleanupSchedule = stringOrDefault("TOKEN_CLEANUP_SCHEDULE", "@every 1h")
	if cfg.Payments.VerifyDelay, err = durationOrDefault("PAYMENT_VERIFY_DELAY", 5*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DSN returns the database connection string. Times are read and written in UTC.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}

func required(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

func stringOrDefault(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

func intOrDefault(key string, def int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolOrDefault(key string, def bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func durationOrDefault(key string, def time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

// parseOrigins splits a comma-separated origin list. An empty list allows every origin (development default).
func parseOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
