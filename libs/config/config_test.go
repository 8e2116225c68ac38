package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_USER", "learnsy")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "learnsy")
	t.Setenv("JWT_SECRET", "jwt-secret")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, int64(100<<20), cfg.Server.MaxUploadSize)
		assert.Equal(t, 10*time.Minute, cfg.Server.TransferTimeout)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, time.Hour, cfg.JWT.AccessTokenExpiry)
		assert.Equal(t, 168*time.Hour, cfg.JWT.RefreshTokenExpiry)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
		assert.Equal(t, "http://localhost:8080", cfg.Storage.MediaBaseURL)
		assert.Equal(t, 5*time.Minute, cfg.Study.IdleTimeout)
		assert.Equal(t, "@every 1m", cfg.Scheduler.SweepSchedule)
		assert.Equal(t, 5*time.Second, cfg.Payments.VerifyDelay)
		assert.Equal(t, "learnsy:secret@tcp(localhost:3306)/learnsy?parseTime=true&charset=utf8mb4&loc=UTC", cfg.DSN())
	})

	t.Run("overrides", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
		t.Setenv("STUDY_IDLE_TIMEOUT", "90s")
		t.Setenv("SERVER_TRANSFER_TIMEOUT", "30m")
		t.Setenv("MEDIA_BASE_URL", "https://cdn.learnsy.app/")
		t.Setenv("STORAGE_DRIVER", "MinIO")
		t.Setenv("MINIO_ENDPOINT", "minio:9000")
		t.Setenv("MINIO_USE_SSL", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, 90*time.Second, cfg.Study.IdleTimeout)
		assert.Equal(t, 30*time.Minute, cfg.Server.TransferTimeout)
		assert.Equal(t, "https://cdn.learnsy.app", cfg.Storage.MediaBaseURL)
		assert.Equal(t, StorageDriverMinIO, cfg.Storage.Driver)
		assert.True(t, cfg.Storage.MinIOUseSSL)
	})

	tests := []struct {
		name          string
		key           string
		value         string
		errorContains string
	}{
		{name: "missing db host", key: "DB_HOST", value: "", errorContains: "DB_HOST is required"},
		{name: "bad db port", key: "DB_PORT", value: "abc", errorContains: "invalid DB_PORT"},
		{name: "missing jwt secret", key: "JWT_SECRET", value: "", errorContains: "JWT_SECRET is required"},
		{name: "bad duration", key: "STUDY_IDLE_TIMEOUT", value: "soon", errorContains: "invalid STUDY_IDLE_TIMEOUT"},
		{name: "negative duration", key: "PAYMENT_VERIFY_DELAY", value: "-1s", errorContains: "must be positive"},
		{name: "unknown storage driver", key: "STORAGE_DRIVER", value: "ftp", errorContains: "invalid STORAGE_DRIVER"},
		{name: "minio without endpoint", key: "STORAGE_DRIVER", value: "minio", errorContains: "MINIO_ENDPOINT is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("MINIO_ENDPOINT", "")
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}
