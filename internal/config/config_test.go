package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultMaxWorkers, cfg.DefaultMaxWorkers)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_max_workers: 7\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.DefaultMaxWorkers)
}

func TestClampMaxWorkers(t *testing.T) {
	require.Equal(t, DefaultMaxWorkers, ClampMaxWorkers(0))
	require.Equal(t, MinMaxWorkers, ClampMaxWorkers(-5))
	require.Equal(t, MaxMaxWorkers, ClampMaxWorkers(99))
	require.Equal(t, 5, ClampMaxWorkers(5))
}
