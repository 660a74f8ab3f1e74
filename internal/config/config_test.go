package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 6999, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Limits.RateLimit)
	assert.Equal(t, "data", cfg.Storage.DataDir)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "base", cfg.Whisper.Model)
	assert.Equal(t, "int8", cfg.Whisper.ComputeType)
	assert.Equal(t, "openrouter", cfg.Summarizer.Primary)
	assert.Empty(t, cfg.Summarizer.Fallback)
	assert.Equal(t, 2, cfg.Workers.Count)
	assert.Equal(t, 60, cfg.Cleanup.IntervalMinutes)
	assert.Equal(t, 24, cfg.Cleanup.MaxAgeHours)
	assert.Equal(t, "0.0.0.0:6999", cfg.Addr())
}

func TestValidateRejectsUnknownNames(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"primary", func(c *Config) { c.Summarizer.Primary = "gpt" }},
		{"fallback", func(c *Config) { c.Summarizer.Fallback = "nope" }},
		{"metadata backend", func(c *Config) { c.YouTube.MetadataBackend = "api" }},
		{"storage driver", func(c *Config) { c.Storage.Driver = "mysql" }},
		{"postgres without url", func(c *Config) { c.Storage.Driver = "postgres" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8080
summarizer:
  primary: claude
  fallback: gemini
whisper:
  model: small
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("WHISPER_MODEL", "medium")
	t.Setenv("RATE_LIMIT", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "claude", cfg.Summarizer.Primary)
	assert.Equal(t, "gemini", cfg.Summarizer.Fallback)
	assert.Equal(t, "medium", cfg.Whisper.Model)
	assert.Equal(t, 3, cfg.Limits.RateLimit)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 6999, cfg.Server.Port)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}
