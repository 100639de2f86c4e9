package config

import (
	"os"
	"path/filepath"
)

const appName = "lantern"

// ConfigDir returns $XDG_CONFIG_HOME/lantern, falling back to
// $HOME/.config/lantern.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", appName)
}

// ConfigPath returns the config.toml location.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// CacheDir returns $XDG_CACHE_HOME/lantern, falling back to
// $HOME/.cache/lantern.
func CacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cache", appName)
}

// LogDir returns the daemon log directory.
func LogDir() string {
	return filepath.Join(CacheDir(), "log")
}

// SocketPath returns the daemon's Unix-socket path.
func SocketPath() string {
	return filepath.Join(CacheDir(), "daemon.sock")
}

// PIDPath returns the daemon's pidfile path.
func PIDPath() string {
	return filepath.Join(CacheDir(), "daemon.pid")
}

// workspaceRootMarkers are the files whose presence marks a project root.
var workspaceRootMarkers = []string{
	".git",
	"pyproject.toml",
	"setup.py",
	"package.json",
	"Cargo.toml",
	"go.mod",
	"pom.xml",
	"build.gradle",
	"Gemfile",
	"composer.json",
	"mix.exs",
	"dune-project",
}

// DetectWorkspaceRoot walks up from path looking for a root marker and
// returns the first directory containing one, or "" when none is found.
func DetectWorkspaceRoot(path string) string {
	current := path
	for {
		for _, marker := range workspaceRootMarkers {
			if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
				return current
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}
