package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	ctx := context.Background()

	cfg, err := Load(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify server defaults
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	// Verify logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "structured", cfg.Logging.Profile)

	// Verify research defaults
	assert.Equal(t, 4, cfg.Research.DefaultBreadth)
	assert.Equal(t, 2, cfg.Research.DefaultDepth)

	// Verify LLM defaults
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 1.0, cfg.LLM.RequestsPerSecond)

	// Verify search defaults
	assert.True(t, cfg.Search.Headless)
	assert.Equal(t, 20*time.Second, cfg.Search.PageTimeout)

	// Verify store defaults
	assert.Equal(t, "fathom.db", cfg.Store.Path)

	// Verify metrics defaults
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)

	// Verify health defaults
	assert.True(t, cfg.Health.Enabled)

	// Verify debug defaults
	assert.False(t, cfg.Debug.Enabled)
	assert.False(t, cfg.Debug.PprofEnabled)

	// Verify worker defaults
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fathom.yaml")
	data := `
server:
  port: 9001
llm:
  api_key: test-key
research:
  default_breadth: 3
search:
  block:
    - "**/pinterest.com/**"
archive:
  backend: file
  dir: /var/lib/fathom/reports
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.Research.DefaultBreadth)
	assert.Equal(t, []string{"**/pinterest.com/**"}, cfg.Search.Block)
	assert.Equal(t, "file", cfg.Archive.Backend)

	// Unset values keep defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 2, cfg.Research.DefaultDepth)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FATHOM_SERVER_PORT", "9002")
	t.Setenv("FATHOM_LLM_API_KEY", "env-key")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 9002, cfg.Server.Port)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fathom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o644))

	_, err := Load(context.Background(), path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"breadth too high", func(c *Config) { c.Research.DefaultBreadth = 6 }, "default_breadth"},
		{"depth zero", func(c *Config) { c.Research.DefaultDepth = 0 }, "default_depth"},
		{"bad archive backend", func(c *Config) { c.Archive.Backend = "ftp" }, "archive.backend"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(context.Background(), "")
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
