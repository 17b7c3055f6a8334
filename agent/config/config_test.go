package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent/config"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, config.Defaults(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentloopd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_turns: 50\nprovider: openai\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 50, cfg.MaxTurns)
	require.Equal(t, "openai", cfg.Provider)
	require.Equal(t, config.Defaults().Model, cfg.Model, "unset fields keep their default")
}

func TestLoadEnvOverridesFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentloopd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_turns: 50\n"), 0o644))

	t.Setenv("AGENTLOOPD_MAX_TURNS", "7")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.MaxTurns)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoadParsesDurationFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentloopd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm_timeout: 45s\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, cfg.LLMTimeout)
}
