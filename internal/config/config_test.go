package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "9980", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "/tmp/collabbroker.fifo", cfg.Broker.WorkerPipe)

	assert.True(t, cfg.Collab.ViewCallbacksEnabled)
	assert.Equal(t, 2*time.Minute, cfg.Collab.IdleTimeout)
	assert.Equal(t, 3, cfg.Collab.RendezvousAttempts)
	assert.Equal(t, 2*time.Second, cfg.Collab.RendezvousInterval)

	assert.Equal(t, 1024, cfg.Cache.GzipThreshold)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "9980", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                       "9000",
		"HOST":                       "127.0.0.1",
		"COLLAB_VIEW_CALLBACKS":      "false",
		"COLLAB_IDLE_TIMEOUT":        "5m",
		"COLLAB_JAIL_ROOT":           "/srv/jail",
		"COLLAB_RENDEZVOUS_ATTEMPTS": "5",
		"LOG_LEVEL":                  "debug",
		"LOG_DEV":                    "true",
		"RATE_LIMIT_RPS":             "500",
		"RATE_LIMIT_BURST":           "1000",
		"RATE_LIMIT_ENABLED":         "false",
	}

	for key, value := range envVars {
		err := os.Setenv(key, value)
		require.NoError(t, err)
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.False(t, cfg.Collab.ViewCallbacksEnabled)
	assert.Equal(t, 5*time.Minute, cfg.Collab.IdleTimeout)
	assert.Equal(t, "/srv/jail", cfg.Collab.JailRoot)
	assert.Equal(t, 5, cfg.Collab.RendezvousAttempts)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	err := os.Setenv("PORT", "3000")
	require.NoError(t, err)
	defer os.Unsetenv("PORT")

	err = os.Setenv("LOG_LEVEL", "warn")
	require.NoError(t, err)
	defer os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.True(t, cfg.Collab.ViewCallbacksEnabled)
	assert.Equal(t, 2*time.Minute, cfg.Collab.IdleTimeout)
}

func TestCollabConfig(t *testing.T) {
	tests := []struct {
		name         string
		idleTimeout  string
		wantIdle     time.Duration
		viewCB       string
		wantViewCB   bool
	}{
		{name: "default values", idleTimeout: "", wantIdle: 2 * time.Minute, viewCB: "", wantViewCB: true},
		{name: "custom idle timeout", idleTimeout: "30s", wantIdle: 30 * time.Second, viewCB: "", wantViewCB: true},
		{name: "view callbacks disabled", idleTimeout: "", wantIdle: 2 * time.Minute, viewCB: "false", wantViewCB: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("COLLAB_IDLE_TIMEOUT")
			os.Unsetenv("COLLAB_VIEW_CALLBACKS")

			if tt.idleTimeout != "" {
				err := os.Setenv("COLLAB_IDLE_TIMEOUT", tt.idleTimeout)
				require.NoError(t, err)
				defer os.Unsetenv("COLLAB_IDLE_TIMEOUT")
			}
			if tt.viewCB != "" {
				err := os.Setenv("COLLAB_VIEW_CALLBACKS", tt.viewCB)
				require.NoError(t, err)
				defer os.Unsetenv("COLLAB_VIEW_CALLBACKS")
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantIdle, cfg.Collab.IdleTimeout)
			assert.Equal(t, tt.wantViewCB, cfg.Collab.ViewCallbacksEnabled)
		})
	}
}

func TestRateLimitConfig(t *testing.T) {
	tests := []struct {
		name        string
		rps         string
		burst       string
		enabled     string
		wantRPS     int
		wantBurst   int
		wantEnabled bool
	}{
		{name: "default values", rps: "", burst: "", enabled: "", wantRPS: 50, wantBurst: 100, wantEnabled: true},
		{name: "high limits", rps: "1000", burst: "2000", enabled: "", wantRPS: 1000, wantBurst: 2000, wantEnabled: true},
		{name: "disabled", rps: "", burst: "", enabled: "false", wantRPS: 50, wantBurst: 100, wantEnabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("RATE_LIMIT_RPS")
			os.Unsetenv("RATE_LIMIT_BURST")
			os.Unsetenv("RATE_LIMIT_ENABLED")

			if tt.rps != "" {
				err := os.Setenv("RATE_LIMIT_RPS", tt.rps)
				require.NoError(t, err)
				defer os.Unsetenv("RATE_LIMIT_RPS")
			}
			if tt.burst != "" {
				err := os.Setenv("RATE_LIMIT_BURST", tt.burst)
				require.NoError(t, err)
				defer os.Unsetenv("RATE_LIMIT_BURST")
			}
			if tt.enabled != "" {
				err := os.Setenv("RATE_LIMIT_ENABLED", tt.enabled)
				require.NoError(t, err)
				defer os.Unsetenv("RATE_LIMIT_ENABLED")
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantRPS, cfg.RateLimit.RequestsPerSecond)
			assert.Equal(t, tt.wantBurst, cfg.RateLimit.Burst)
			assert.Equal(t, tt.wantEnabled, cfg.RateLimit.Enabled)
		})
	}
}
