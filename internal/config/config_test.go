package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAgentConfigFileMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadAgentConfigFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAgentConfig(), cfg)
}

func TestLoadAgentConfigFileOverlaysTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_active_tasks = 25\n"), 0o644))

	cfg, err := LoadAgentConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.MaxActiveTasks)
	assert.Equal(t, DefaultAgentConfig().SocketPath, cfg.SocketPath)
}

func TestLoadAgentConfigFileMissingFileErrors(t *testing.T) {
	_, err := LoadAgentConfigFile("/nonexistent/agent.toml")
	assert.Error(t, err)
}

func TestResolveQualityConfigOverridesDefaults(t *testing.T) {
	cfg, err := ResolveQualityConfig(DefaultQualityConfig(), map[string]any{
		"complexity_threshold": "15",
		"scan_duplication":     false,
	})
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.ComplexityThreshold)
	assert.False(t, cfg.ScanDuplication)
	assert.True(t, cfg.RuffEnabled)
}

func TestResolveQualityConfigNilRawKeepsDefaults(t *testing.T) {
	cfg, err := ResolveQualityConfig(DefaultQualityConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultQualityConfig(), cfg)
}

func TestResolveSecurityConfigOverridesDefaults(t *testing.T) {
	cfg, err := ResolveSecurityConfig(DefaultSecurityConfig(), map[string]any{
		"scan_secrets": false,
	})
	require.NoError(t, err)
	assert.False(t, cfg.ScanSecrets)
	assert.True(t, cfg.ScanDependencies)
}
