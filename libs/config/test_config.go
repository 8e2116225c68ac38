package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadTestConfig loads TEST_* variables for integration tests.
// When the test database is not configured it returns an empty Config and the caller skips.
func LoadTestConfig() (*Config, error) {
	_ = godotenv.Load("../../.env")
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.Database.Host = os.Getenv("TEST_DB_HOST")
	cfg.Database.User = os.Getenv("TEST_DB_USER")
	cfg.Database.Password = os.Getenv("TEST_DB_PASSWORD")
	cfg.Database.DBName = os.Getenv("TEST_DB_NAME")
	dbPortStr := os.Getenv("TEST_DB_PORT")

	if cfg.Database.Host == "" || dbPortStr == "" || cfg.Database.User == "" || cfg.Database.DBName == "" {
		return &Config{}, nil
	}

	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid TEST_DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort

	cfg.JWT.Secret = stringOrDefault("TEST_JWT_SECRET", "integration-secret")
	cfg.JWT.AccessTokenExpiry = time.Hour
	cfg.JWT.RefreshTokenExpiry = 24 * time.Hour
	cfg.Storage.Driver = StorageDriverLocal
	cfg.Storage.MediaBasePath = os.Getenv("TEST_MEDIA_BASE_PATH")
	cfg.Storage.MediaBaseURL = "http://localhost:8080"
	cfg.Study.IdleTimeout = 5 * time.Minute

	return cfg, nil
}

// IsConfigured reports whether a database was configured
func (c *Config) IsConfigured() bool {
	return c.Database.Host != ""
}
