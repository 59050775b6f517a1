package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guayoyo/loyalty-service/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOYALTY_REMOTE_URL", "")
	t.Setenv("LOYALTY_REMOTE_KEY", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("REDIS_DB", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, domain.StoreModeLocal, cfg.Remote.Mode())
	assert.Equal(t, 10*time.Second, cfg.Loyalty.WriteTimeout())
	assert.Equal(t, 30*24*time.Hour, cfg.Session.TTL())
}

func TestRemoteModeNeedsBothValues(t *testing.T) {
	t.Setenv("LOYALTY_REMOTE_URL", "postgres://loyalty@db:5432/loyalty")
	t.Setenv("LOYALTY_REMOTE_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, domain.StoreModeLocal, cfg.Remote.Mode())

	t.Setenv("LOYALTY_REMOTE_KEY", "s3cret")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, domain.StoreModeRemote, cfg.Remote.Mode())
}

func TestLoadInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "one")
	_, err := Load()
	assert.Error(t, err)
}

func TestIntFallbacks(t *testing.T) {
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "nope")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "maybe")
	t.Setenv("SESSION_TTL_MINUTES", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.App.RequestTimeoutSeconds)
	assert.True(t, cfg.Remote.RunMigrations)
	assert.Equal(t, time.Hour, cfg.Session.TTL())
}
