package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig(false)
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Nil(t, cfg.DB, "file backend needs no database section")
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenDuration)
	assert.Equal(t, time.Hour, cfg.Auth.RefreshWindow)
	assert.Equal(t, "blog_token", cfg.Auth.CookieName)
}

func TestLoadConfigMissingAdminIdentity(t *testing.T) {
	// Neither admin variable set: both must be reported together.
	_, err := LoadConfig(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_USERNAME")
	assert.Contains(t, err.Error(), "ADMIN_PASSWORD_HASH")
}

func TestLoadConfigPostgresRequiresDB(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_BACKEND", "postgres")

	_, err := LoadConfig(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_USER")
	assert.Contains(t, err.Error(), "DB_PASSWORD")
	assert.Contains(t, err.Error(), "DB_NAME")
}

func TestLoadConfigPostgres(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DB_USER", "blog")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "blogdb")
	t.Setenv("DB_POOL_SIZE", "20")

	cfg, err := LoadConfig(false)
	require.NoError(t, err)
	require.NotNil(t, cfg.DB)
	assert.Equal(t, "blog", cfg.DB.User)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, 20, cfg.DB.PoolSize)
}

func TestLoadConfigClampsPoolSize(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DB_USER", "blog")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "blogdb")
	t.Setenv("DB_POOL_SIZE", "500")

	// Out-of-range values are clamped but still reported as errors.
	_, err := LoadConfig(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_POOL_SIZE")
}

func TestLoadConfigInvalidBackend(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_BACKEND", "mongo")

	_, err := LoadConfig(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_BACKEND")
}

func TestLoadConfigNeedsDBForMigration(t *testing.T) {
	setBaseEnv(t)
	// File backend selected, but the migrate command always targets the
	// relational store.
	_, err := LoadConfig(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_USER")
}
