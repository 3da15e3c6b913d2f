package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "courier-portal", cfg.App.Name)
	assert.Equal(t, "/auth/admin/login", cfg.Backend.AdminLoginPath)
	assert.Equal(t, "/delivery-agent/login", cfg.Backend.DeliveryAgentLoginPath)
	assert.Equal(t, "/auth/refresh", cfg.Backend.RefreshPath)
	assert.Equal(t, "portal_sid", cfg.Session.TabCookie)
	assert.Equal(t, 2*time.Hour, cfg.Session.TabTTL())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://courier.example.com/api/")
	t.Setenv("BACKEND_TIMEOUT_SECONDS", "3")
	t.Setenv("SESSION_TAB_TTL_MINUTES", "5")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")
	t.Setenv("APP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://courier.example.com/api", cfg.Backend.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, 5*time.Minute, cfg.Session.TabTTL())
	assert.False(t, cfg.Postgres.RunMigrations)
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")

	_, err := Load()
	require.Error(t, err)
}

func TestGetEnvAsInt_FallsBack(t *testing.T) {
	t.Setenv("SOME_INT", "nope")
	assert.Equal(t, 7, getEnvAsInt("SOME_INT", 7))
}
