package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTHORITY_URL", "https://auth.example.com")
	t.Setenv("BACKEND_URL", "https://api.example.com")
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "FARE_SESSION", cfg.SessionCookieName)
	assert.Equal(t, 30*time.Minute, cfg.TaskTimeout)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 20, cfg.TaskHistoryLimit)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		skipEnv string
		wantErr string
	}{
		{"missing AUTHORITY_URL", "AUTHORITY_URL", "AUTHORITY_URL is required"},
		{"missing BACKEND_URL", "BACKEND_URL", "BACKEND_URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.skipEnv, "")

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_RejectsRelativeURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BACKEND_URL", "/api")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_URL must be an absolute URL")
}

func TestLoad_CustomDurations(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TASK_TIMEOUT", "10m")
	t.Setenv("POLL_INTERVAL", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.TaskTimeout)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
}

func TestLoad_StorageBackends(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"sqlite default path", map[string]string{"STORAGE_BACKEND": "sqlite"}, ""},
		{"redis without url", map[string]string{"STORAGE_BACKEND": "redis"}, "REDIS_URL is required when STORAGE_BACKEND=redis"},
		{"redis with url", map[string]string{"STORAGE_BACKEND": "redis", "REDIS_URL": "redis://localhost:6379"}, ""},
		{"postgres without url", map[string]string{"STORAGE_BACKEND": "postgres"}, "DATABASE_URL is required when STORAGE_BACKEND=postgres"},
		{"postgres with url", map[string]string{"STORAGE_BACKEND": "postgres", "DATABASE_URL": "postgres://localhost/db"}, ""},
		{"unknown", map[string]string{"STORAGE_BACKEND": "etcd"}, `STORAGE_BACKEND "etcd" is not supported`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("REDIS_URL", "")
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_InvalidLimits(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"zero history", "TASK_HISTORY_LIMIT", "0", "TASK_HISTORY_LIMIT must be at least 1"},
		{"zero poll", "POLL_INTERVAL", "0s", "POLL_INTERVAL must be positive"},
		{"zero burst", "API_RATE_BURST", "0", "API_RATE_LIMIT and API_RATE_BURST must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}
