package config

import (
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	unset(t, "DATABASE_URL", "SEARCH_TICK_INTERVAL", "REJECT_SWEEP_INTERVAL",
		"REJECT_DEFAULT_MARGIN", "CONFIRMATION_GRACE", "LOBBY_EVENTS_QUEUE", "LOG_LEVEL")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.SearchTickInterval)
	assert.Equal(t, 10*time.Minute, cfg.RejectSweepInterval)
	assert.Equal(t, 30*time.Minute, cfg.RejectDefaultMargin)
	assert.Equal(t, 3*time.Minute, cfg.ConfirmationGrace)
	assert.Equal(t, "smashbot_lobby_events", cfg.LobbyEventsQueue)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SEARCH_TICK_INTERVAL", "15s")
	t.Setenv("CONFIRMATION_GRACE", "90s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.SearchTickInterval)
	assert.Equal(t, 90*time.Second, cfg.ConfirmationGrace)

	logger := cfg.Logger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SEARCH_TICK_INTERVAL", "-1s")
	_, err := Load()
	assert.ErrorContains(t, err, "SEARCH_TICK_INTERVAL")

	t.Setenv("SEARCH_TICK_INTERVAL", "1m")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load()
	assert.ErrorContains(t, err, "LOG_LEVEL")
}

// unset clears keys for the duration of the test.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}
