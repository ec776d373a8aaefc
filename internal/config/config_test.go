package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.Batch.CloseDelay)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 5*time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, "sqlite", cfg.ActivityDB.Type)
	assert.Equal(t, 100, cfg.Gateway.PageSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GATEWAY_BASE_URL", "https://raffles.example.com")
	t.Setenv("BATCH_CLOSE_DELAY", "2s")
	t.Setenv("SESSION_STORE", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://raffles.example.com", cfg.Gateway.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Batch.CloseDelay)
	assert.Equal(t, "redis", cfg.Session.Store)
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("SESSION_STORE", "memcached")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_STORE")
}

func TestDSNs(t *testing.T) {
	db := ActivityDBConfig{Host: "db", Name: "raffles", User: "u", Password: "p", SSLMode: "disable"}

	assert.Equal(t, "u:p@tcp(db:3306)/raffles?parseTime=true", db.MySQLDSN())
	assert.Equal(t, "postgres://u:p@db:5432/raffles?sslmode=disable", db.PostgresDSN())
}
