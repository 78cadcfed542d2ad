package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(FileEnv, "")
	for _, envs := range keys {
		for _, e := range envs {
			t.Setenv(e, "")
			os.Unsetenv(e)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3001", cfg.APIURL)
	assert.Equal(t, 10*time.Second, cfg.APITimeout)
	assert.Equal(t, 30*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, "https://starling-pay.com", cfg.AppURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "", cfg.StoreDSN)
	assert.Equal(t, "starling_access_token", cfg.AccessTokenKey)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "development", cfg.Env)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEXT_PUBLIC_API_URL", "https://api.example.com/")
	t.Setenv("RETRY_ATTEMPTS", "5")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_DSN", "sqlite:/tmp/paysync.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "sqlite:/tmp/paysync.db", cfg.StoreDSN)
}

func TestLoad_BareIntegerDurationsAreMilliseconds(t *testing.T) {
	clearEnv(t)
	t.Setenv("RETRY_DELAY", "1000")
	t.Setenv("API_TIMEOUT", "2500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, 2500*time.Millisecond, cfg.APITimeout)
}

func TestLoad_FileUnderEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "paysync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: https://file.example.com\nserver_port: \"9090\"\napi_timeout: 3s\n"), 0o600))
	t.Setenv(FileEnv, path)
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://file.example.com", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.APITimeout)
	assert.Equal(t, "7070", cfg.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"relative api url": {"API_URL": "localhost:3001/api"},
		"zero attempts":    {"RETRY_ATTEMPTS": "0"},
		"negative delay":   {"RETRY_DELAY": "-1s"},
		"zero delay":       {"RETRY_DELAY": "0"},
		"garbled timeout":  {"API_TIMEOUT": "soon"},
		"bad log level":    {"LOG_LEVEL": "loud"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
