package platform

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathsForLinuxHonoursXDG(t *testing.T) {
	p, err := PathsFor("linux", map[string]string{
		"XDG_CONFIG_HOME": "/xdg/config",
		"XDG_DATA_HOME":   "/xdg/data",
	}, "/fallback/config", "/fallback/data", "fitlog")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/xdg/config", "fitlog", "config.toml"), p.ConfigPath)
	require.Equal(t, filepath.Join("/xdg/data", "fitlog"), p.DataDir)
	require.Equal(t, filepath.Join("/xdg/data", "fitlog", "fitlog.db"), p.DBPath)
}

func TestPathsForLinuxFallsBackWithoutXDG(t *testing.T) {
	p, err := PathsFor("linux", map[string]string{}, "/home/me/.config", "/home/me/.local/share", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/home/me/.config", "fitlog", "config.toml"), p.ConfigPath)
	require.Equal(t, filepath.Join("/home/me/.local/share", "fitlog", "fitlog.db"), p.DBPath)
}

func TestPathsForDarwinIgnoresXDG(t *testing.T) {
	p, err := PathsFor("darwin", map[string]string{"XDG_CONFIG_HOME": "/ignored"},
		"/Users/me/Library/Application Support", "/Users/me/Library/Application Support", "fitlog")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/Users/me/Library/Application Support", "fitlog", "config.toml"), p.ConfigPath)
}

func TestPathsForRequiresBaseDirs(t *testing.T) {
	_, err := PathsFor("linux", nil, "", "/data", "fitlog")
	require.Error(t, err)
}
