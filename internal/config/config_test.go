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
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 20*time.Second, cfg.ClosingTimeout())
	assert.Equal(t, 5*time.Second, cfg.SweepDelay())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CLOSING_TIMEOUT_SECONDS", "45")
	t.Setenv("DEFAULT_TIMEZONE", "America/Lima")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.ClosingTimeout())
	assert.Equal(t, "America/Lima", cfg.Location().String())
}

func TestLocationFallback(t *testing.T) {
	cfg := &Config{DefaultTimeZone: "Mars/Olympus"}
	assert.Equal(t, time.Local, cfg.Location())
}
