package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DATABASE", "stepio")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBType)
	assert.Equal(t, 5, cfg.DBConnectionLimit)
	assert.Equal(t, "stepio", cfg.RedisKeyPrefix)
	assert.True(t, cfg.NotificationsEnabled)
	assert.False(t, cfg.AdminOverride)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"JWT_SECRET": "s"}},
		{"missing auth", map[string]string{"DB_DATABASE": "stepio"}},
		{"authorizer without client", map[string]string{"DB_DATABASE": "stepio", "AUTHZ_URL": "http://authz"}},
		{"bad timezone", map[string]string{"DB_DATABASE": "stepio", "JWT_SECRET": "s", "DEFAULT_TIMEZONE": "Mars/Olympus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"DB_DATABASE", "JWT_SECRET", "AUTHZ_URL", "AUTHZ_CLIENT_ID", "DEFAULT_TIMEZONE"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadTypedValues(t *testing.T) {
	t.Setenv("DB_DATABASE", "stepio")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DB_CONNECTION_LIMIT", "not-a-number")
	t.Setenv("ADMIN_OVERRIDE", "true")
	t.Setenv("ADMIN_EMAIL", "Admin@Stepio.App")
	t.Setenv("NOTIFICATIONS_ENABLED", "false")
	t.Setenv("DEFAULT_TIMEZONE", "UTC")
	t.Setenv("RECORD_IDLE_MINUTES", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 5, cfg.DBConnectionLimit)
	assert.True(t, cfg.AdminOverride)
	assert.Equal(t, "admin@stepio.app", cfg.AdminEmail)
	assert.False(t, cfg.NotificationsEnabled)
	assert.Equal(t, "UTC", cfg.Location().String())
	assert.Zero(t, cfg.RecordIdle())

	cfg.RecordIdleMinutes = 45
	assert.Equal(t, 45*time.Minute, cfg.RecordIdle())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STEPIO_TEST_ONLY=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("STEPIO_TEST_ONLY") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("STEPIO_TEST_ONLY"))

	assert.NoError(t, LoadEnvFile(""))
	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
