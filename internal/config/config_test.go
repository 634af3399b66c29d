package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.APIAddr)
	require.Equal(t, LauncherLocal, cfg.Launcher)
	require.Equal(t, 1200*time.Millisecond, cfg.PollInterval)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LEARNFLOW_DATA_DIR", "/tmp/lf")
	t.Setenv("LEARNFLOW_LAUNCHER", "Temporal")
	t.Setenv("LEARNFLOW_POLL_INTERVAL", "250ms")
	t.Setenv("LEARNFLOW_CHUNK_OVERLAP", "5000")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/lf", cfg.DataDir)
	require.Equal(t, LauncherTemporal, cfg.Launcher)
	require.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	require.Equal(t, 0, cfg.ChunkOverlap)
}

func TestLoadRejectsUnknownLauncher(t *testing.T) {
	t.Setenv("LEARNFLOW_LAUNCHER", "kafka")
	_, err := Load()
	require.Error(t, err)
}
