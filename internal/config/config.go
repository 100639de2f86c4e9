// Package config loads and saves the daemon's TOML configuration and owns
// the well-known per-user paths (config, cache, socket, pidfile).
//
// Every read and write of config.toml happens under an exclusive lock on
// config.toml.lock so concurrent daemon and CLI invocations cannot interleave
// a read-modify-write.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

// DefaultCacheSize bounds each cache at 256 MiB unless configured.
const DefaultCacheSize = 256 * 1024 * 1024

// DaemonConfig holds daemon-wide tunables.
type DaemonConfig struct {
	LogLevel        string `toml:"log_level"`
	RequestTimeout  int64  `toml:"request_timeout"`
	HoverCacheSize  int64  `toml:"hover_cache_size"`
	SymbolCacheSize int64  `toml:"symbol_cache_size"`
}

// WorkspacesConfig lists known roots and excluded languages.
type WorkspacesConfig struct {
	Roots             []string `toml:"roots"`
	ExcludedLanguages []string `toml:"excluded_languages"`
}

// FormattingConfig is advisory formatting state passed through to servers.
type FormattingConfig struct {
	TabSize      int  `toml:"tab_size"`
	InsertSpaces bool `toml:"insert_spaces"`
}

// ServerLanguageConfig forces a specific server for a language.
type ServerLanguageConfig struct {
	Preferred string `toml:"preferred,omitempty"`
}

// Config is the full on-disk configuration.
type Config struct {
	Daemon     DaemonConfig                    `toml:"daemon"`
	Workspaces WorkspacesConfig                `toml:"workspaces"`
	Formatting FormattingConfig                `toml:"formatting"`
	Servers    map[string]ServerLanguageConfig `toml:"servers"`
}

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			LogLevel:        "info",
			RequestTimeout:  30,
			HoverCacheSize:  DefaultCacheSize,
			SymbolCacheSize: DefaultCacheSize,
		},
		Formatting: FormattingConfig{
			TabSize:      4,
			InsertSpaces: true,
		},
		Servers: map[string]ServerLanguageConfig{},
	}
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	if c.Daemon.LogLevel == "" {
		c.Daemon.LogLevel = "info"
	}
	if c.Daemon.RequestTimeout == 0 {
		c.Daemon.RequestTimeout = 30
	}
	if c.Daemon.HoverCacheSize == 0 {
		c.Daemon.HoverCacheSize = DefaultCacheSize
	}
	if c.Daemon.SymbolCacheSize == 0 {
		c.Daemon.SymbolCacheSize = DefaultCacheSize
	}
	if c.Formatting.TabSize == 0 {
		c.Formatting.TabSize = 4
		c.Formatting.InsertSpaces = true
	}
	if c.Servers == nil {
		c.Servers = map[string]ServerLanguageConfig{}
	}
}

// PreferredServer implements registry.PreferredNames.
func (c *Config) PreferredServer(languageKey string) string {
	return c.Servers[languageKey].Preferred
}

// lockConfig acquires the exclusive config lock, creating the directory as
// needed. The caller must Unlock.
func lockConfig() (*flock.Flock, error) {
	lockPath := ConfigPath() + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("lock config: %w", err)
	}
	return fl, nil
}

// Load reads config.toml under the config lock. A missing file yields the
// defaults.
func Load() (*Config, error) {
	fl, err := lockConfig()
	if err != nil {
		return nil, err
	}
	defer fl.Unlock()
	return loadUnlocked()
}

func loadUnlocked() (*Config, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes config.toml under the config lock.
func (c *Config) Save() error {
	fl, err := lockConfig()
	if err != nil {
		return err
	}
	defer fl.Unlock()
	return c.saveUnlocked()
}

func (c *Config) saveUnlocked() error {
	if err := os.MkdirAll(ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// AddWorkspaceRoot registers a root in the config, holding the lock across
// the whole read-modify-write. It reports whether the root was newly added.
func AddWorkspaceRoot(root string) (bool, error) {
	fl, err := lockConfig()
	if err != nil {
		return false, err
	}
	defer fl.Unlock()

	cfg, err := loadUnlocked()
	if err != nil {
		return false, err
	}
	for _, r := range cfg.Workspaces.Roots {
		if r == root {
			return false, nil
		}
	}
	cfg.Workspaces.Roots = append(cfg.Workspaces.Roots, root)
	if err := cfg.saveUnlocked(); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveWorkspaceRoot removes a root from the config, reporting whether it
// was present.
func RemoveWorkspaceRoot(root string) (bool, error) {
	fl, err := lockConfig()
	if err != nil {
		return false, err
	}
	defer fl.Unlock()

	cfg, err := loadUnlocked()
	if err != nil {
		return false, err
	}
	kept := cfg.Workspaces.Roots[:0]
	removed := false
	for _, r := range cfg.Workspaces.Roots {
		if r == root {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	if !removed {
		return false, nil
	}
	cfg.Workspaces.Roots = kept
	if err := cfg.saveUnlocked(); err != nil {
		return false, err
	}
	return true, nil
}

// BestWorkspaceRoot returns the configured root with the longest prefix
// match for path, falling back to a match against cwd, or "".
func (c *Config) BestWorkspaceRoot(path, cwd string) string {
	best := ""
	canonPath := canonicalize(path)
	for _, rootStr := range c.Workspaces.Roots {
		root := canonicalize(rootStr)
		if hasPathPrefix(canonPath, root) && len(root) > len(best) {
			best = root
		}
	}
	if best != "" {
		return best
	}
	if cwd != "" {
		canonCwd := canonicalize(cwd)
		for _, rootStr := range c.Workspaces.Roots {
			root := canonicalize(rootStr)
			if hasPathPrefix(canonCwd, root) && len(root) > len(best) {
				best = root
			}
		}
	}
	return best
}

func canonicalize(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func hasPathPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
