package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfig_Defaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.WebServer.Port)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.ViewportWidth)
	assert.Equal(t, 1080, cfg.Browser.ViewportHeight)
	assert.Contains(t, cfg.Browser.UserAgent, "Chrome")

	assert.Equal(t, 30*time.Second, cfg.Flow.NavigationTimeout)
	assert.Equal(t, 15*time.Second, cfg.Flow.ElementTimeout)
	assert.Equal(t, 5*time.Second, cfg.Flow.SettleDelay)
	assert.True(t, cfg.Flow.BlockResources)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
}

func TestLoadServerConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8085")
	t.Setenv("FLOW_SETTLE_DELAY", "2s")
	t.Setenv("BROWSER_EXECUTABLE_PATH", "/usr/bin/google-chrome-stable")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	assert.Equal(t, 8085, cfg.WebServer.Port)
	assert.Equal(t, 2*time.Second, cfg.Flow.SettleDelay)
	assert.Equal(t, "/usr/bin/google-chrome-stable", cfg.Browser.ExecutablePath)
}
