package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenConfigPathEmpty(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, ":8443", cfg.Server.ListenAddr)
	assert.Equal(t, 24*time.Hour, cfg.Trending.RetentionWindow)
}

func TestLoadMergesUserConfigOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen_addr: ":9443"
trending:
  sweep_interval: 5m
`), 0o644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, ":9443", cfg.Server.ListenAddr)
	assert.Equal(t, 5*time.Minute, cfg.Trending.SweepInterval)
	// Untouched fields keep their default.
	assert.Equal(t, "hub.db", cfg.Store.Path)
}

func TestHubSecretReadsEnvVar(t *testing.T) {
	t.Setenv("SONDE_HUB_SECRET", "super-secret-value")
	cfg := defaults()
	secret, err := cfg.HubSecret()
	require.NoError(t, err)
	assert.Equal(t, []byte("super-secret-value"), secret)
}

func TestHubSecretMissingEnvVarErrors(t *testing.T) {
	cfg := defaults()
	cfg.HubSecretEnv = "SONDE_HUB_SECRET_DOES_NOT_EXIST"
	_, err := cfg.HubSecret()
	require.Error(t, err)
}
