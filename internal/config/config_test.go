package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_ARBITER_KEY", "secret-from-env")
	path := writeConfig(t, `
backends:
  - provider: openrouter
    name: judge-a
    model: anthropic/claude-haiku-4.5
    api_key_env: TEST_ARBITER_KEY
analysis:
  concurrency: 2
  score_threshold: 0.4
history:
  path: /tmp/test-arbiter.db
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, "secret-from-env", cfg.Backends[0].APIKey)
	assert.Equal(t, 2, cfg.Analysis.Concurrency)
	assert.InDelta(t, 0.4, cfg.Analysis.ScoreThreshold, 1e-9)
	assert.Equal(t, "/tmp/test-arbiter.db", cfg.History.Path)

	// Unset fields still get defaults.
	assert.Equal(t, 10, cfg.Analysis.MaxPasses)
	assert.Equal(t, 3, cfg.Analysis.DeclineThreshold)
}

func TestLoadConfigMissingKey(t *testing.T) {
	t.Setenv("TEST_ARBITER_MISSING", "")
	path := writeConfig(t, `
backends:
  - provider: openrouter
    name: judge-a
    model: m
    api_key_env: TEST_ARBITER_MISSING
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_ARBITER_MISSING")
}

func TestLoadConfigInlineKeyWins(t *testing.T) {
	path := writeConfig(t, `
backends:
  - provider: ollama
    name: local
    model: llama3.1
    api_key: inline
    api_key_env: UNSET_VAR_IGNORED
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "inline", cfg.Backends[0].APIKey)
}

func TestLoadConfigHistoryOverride(t *testing.T) {
	t.Setenv("ARBITER_HISTORY_PATH", "/tmp/override.db")
	path := writeConfig(t, "history:\n  path: ignored.db\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.History.Path)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Backends)
	assert.Equal(t, 5, cfg.Analysis.Concurrency)
	assert.Equal(t, 10, cfg.Analysis.MaxPasses)
	assert.Equal(t, 3, cfg.Analysis.DeclineThreshold)
	assert.Equal(t, "arbiter.db", cfg.History.Path)
}
