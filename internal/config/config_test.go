package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "auction.db", cfg.Database.Path)
	require.Equal(t, 2*time.Second, cfg.LockWait())
	require.Equal(t, 30*time.Second, cfg.CloserInterval())
	require.Equal(t, 24*time.Hour, cfg.TokenTTL())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
bidding:
  lock_wait_ms: 500
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, 500*time.Millisecond, cfg.LockWait())
	require.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	require.Equal(t, "auction.db", cfg.Database.Path)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
`), 0o644))

	t.Setenv("PORT", "7070")
	t.Setenv("AUCTION_JWT_SECRET", "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty_port", func(c *Config) { c.Server.Port = "" }},
		{"empty_db_path", func(c *Config) { c.Database.Path = "" }},
		{"empty_secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"zero_ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		{"zero_lock_wait", func(c *Config) { c.Bidding.LockWaitMS = 0 }},
		{"zero_closer_interval", func(c *Config) { c.Closer.IntervalSec = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, Default().Validate())
}
