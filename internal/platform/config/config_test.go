package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/portal?sslmode=disable")
	t.Setenv("JWT_SECRET", testSecret)
}

func TestFromEnvDefaults(t *testing.T) {
	validEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "http://localhost:4445", cfg.HydraAdminURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 7*24*time.Hour, cfg.AdminTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.UserTokenTTL)
	assert.Equal(t, 60*24*time.Hour, cfg.UserTokenRememberTTL)
	assert.False(t, cfg.ResolveInactiveTenants)
	assert.True(t, cfg.LogoutSkipConfirm)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}

func TestFromEnvOverrides(t *testing.T) {
	validEnv(t)
	t.Setenv("PORTAL_ADDR", ":9090")
	t.Setenv("USER_TOKEN_TTL", "12h")
	t.Setenv("LOGOUT_SKIP_CONFIRM", "false")
	t.Setenv("RESOLVE_INACTIVE_TENANTS", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_POOL_SIZE", "25")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 12*time.Hour, cfg.UserTokenTTL)
	assert.False(t, cfg.LogoutSkipConfirm)
	assert.True(t, cfg.ResolveInactiveTenants)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 25, cfg.Redis.PoolSize)
}

func TestFromEnvRequiredValues(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("JWT_SECRET", testSecret)

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/portal")
		t.Setenv("JWT_SECRET", "")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("short jwt secret", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/portal")
		t.Setenv("JWT_SECRET", "too-short")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 32 bytes")
	})

	t.Run("all errors reported at once", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("JWT_SECRET", "")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})
}

func TestFromEnvBadValuesFallBack(t *testing.T) {
	validEnv(t)
	t.Setenv("USER_TOKEN_TTL", "not-a-duration")
	t.Setenv("REDIS_POOL_SIZE", "many")
	t.Setenv("LOGOUT_SKIP_CONFIRM", "maybe")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 30*24*time.Hour, cfg.UserTokenTTL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.True(t, cfg.LogoutSkipConfirm)
}
