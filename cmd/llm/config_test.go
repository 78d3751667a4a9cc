package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider = "anthropic"
model = "claude-sonnet-4-20250514"
max_tokens = 2048
temperature = 0.3
markdown = false
`), 0o600))

	cfg, err := loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Model)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.InDelta(t, 0.3, cfg.Temperature, 1e-9)
	assert.False(t, cfg.Markdown)
}

func TestLoadConfig_MissingDefaultPathTolerated(t *testing.T) {
	t.Parallel()
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"), false)
	require.NoError(t, err)
	assert.True(t, cfg.Markdown)
}

func TestLoadConfig_MissingExplicitPathFails(t *testing.T) {
	t.Parallel()
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"), true)
	require.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	t.Parallel()
	cfg := Config{Provider: "openai", Model: "gpt-4o-mini", Markdown: true}

	applyFlags(&cfg, "anthropic", "", 512, 0, true)

	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 512, cfg.MaxTokens)
	assert.False(t, cfg.Markdown)
}
