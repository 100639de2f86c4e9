// Package registry holds the static table of known language servers and
// decides which server to launch for a given language. The table is part of
// the product surface: adding support for a language means adding an entry
// here, never touching the session or client code.
package registry

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ServerConfig describes one installable language server.
type ServerConfig struct {
	// Name uniquely identifies the server; it keys quirk tables and the
	// session's per-root server map.
	Name string

	// Command is the argv used to spawn the server.
	Command []string

	// Languages are the LSP language ids the server handles.
	Languages []string

	// Extensions are the source-file patterns the server covers.
	Extensions []string

	// RootMarkers are files whose presence marks a workspace root for
	// this server.
	RootMarkers []string

	// InstallHint tells the user how to install a missing server.
	InstallHint string
}

// servers maps a language key to its candidate servers in preference order.
var servers = map[string][]*ServerConfig{
	"python": {
		{
			Name:        "basedpyright",
			Command:     []string{"basedpyright-langserver", "--stdio"},
			Languages:   []string{"python"},
			Extensions:  []string{"*.py", "*.pyi"},
			RootMarkers: []string{"pyproject.toml", "setup.py", "setup.cfg", "requirements.txt", "pyrightconfig.json"},
			InstallHint: "npm install -g basedpyright",
		},
		{
			Name:        "pylsp",
			Command:     []string{"pylsp"},
			Languages:   []string{"python"},
			Extensions:  []string{"*.py", "*.pyi"},
			RootMarkers: []string{"pyproject.toml", "setup.py", "setup.cfg"},
			InstallHint: "pip install python-lsp-server",
		},
	},
	"rust": {
		{
			Name:        "rust-analyzer",
			Command:     []string{"rust-analyzer"},
			Languages:   []string{"rust"},
			Extensions:  []string{"*.rs"},
			RootMarkers: []string{"Cargo.toml"},
			InstallHint: "rustup component add rust-analyzer",
		},
	},
	"typescript": {
		{
			Name:        "typescript-language-server",
			Command:     []string{"typescript-language-server", "--stdio"},
			Languages:   []string{"typescript", "typescriptreact", "javascript", "javascriptreact"},
			Extensions:  []string{"*.ts", "*.tsx", "*.js", "*.jsx"},
			RootMarkers: []string{"package.json", "tsconfig.json", "jsconfig.json"},
			InstallHint: "npm install -g typescript-language-server typescript",
		},
	},
	"go": {
		{
			Name:        "gopls",
			Command:     []string{"gopls"},
			Languages:   []string{"go"},
			Extensions:  []string{"*.go"},
			RootMarkers: []string{"go.mod", "go.sum"},
			InstallHint: "go install golang.org/x/tools/gopls@latest",
		},
	},
	"c": {
		{
			Name:        "clangd",
			Command:     []string{"clangd"},
			Languages:   []string{"c", "cpp"},
			Extensions:  []string{"*.c", "*.h", "*.cpp", "*.hpp", "*.cc", "*.cxx"},
			RootMarkers: []string{"compile_commands.json", "CMakeLists.txt", "Makefile"},
			InstallHint: "brew install llvm (macOS) or apt install clangd (Ubuntu)",
		},
	},
	"java": {
		{
			Name:        "jdtls",
			Command:     []string{"jdtls"},
			Languages:   []string{"java"},
			Extensions:  []string{"*.java"},
			RootMarkers: []string{"pom.xml", "build.gradle", ".project"},
		},
	},
	"ruby": {
		{
			Name:        "ruby-lsp",
			Command:     []string{"ruby-lsp"},
			Languages:   []string{"ruby"},
			Extensions:  []string{"*.rb", "*.rake", "Gemfile", "Rakefile"},
			RootMarkers: []string{"Gemfile", ".ruby-version", "Rakefile"},
			InstallHint: "gem install ruby-lsp",
		},
	},
	"php": {
		{
			Name:        "intelephense",
			Command:     []string{"intelephense", "--stdio"},
			Languages:   []string{"php"},
			Extensions:  []string{"*.php", "*.phtml"},
			RootMarkers: []string{"composer.json", "composer.lock", "index.php"},
			InstallHint: "npm install -g intelephense",
		},
	},
	"lua": {
		{
			Name:        "lua-language-server",
			Command:     []string{"lua-language-server"},
			Languages:   []string{"lua"},
			Extensions:  []string{"*.lua"},
			RootMarkers: []string{".luarc.json", ".luarc.jsonc"},
			InstallHint: "brew install lua-language-server",
		},
	},
	"zig": {
		{
			Name:        "zls",
			Command:     []string{"zls"},
			Languages:   []string{"zig"},
			Extensions:  []string{"*.zig"},
			RootMarkers: []string{"build.zig"},
			InstallHint: "brew install zls",
		},
	},
}

// languageKey folds related language ids onto one registry entry.
func languageKey(languageID string) string {
	switch languageID {
	case "typescript", "typescriptreact", "javascript", "javascriptreact":
		return "typescript"
	case "c", "cpp":
		return "c"
	case "python", "rust", "go", "java", "ruby", "php", "lua", "zig":
		return languageID
	default:
		return ""
	}
}

// ExtendedPath returns PATH augmented with the well-known per-user tool
// directories language servers tend to be installed into.
func ExtendedPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	extra := []string{
		filepath.Join(home, ".gem", "bin"),
		filepath.Join(home, "go", "bin"),
		filepath.Join(home, ".cargo", "bin"),
		filepath.Join(home, ".local", "bin"),
		"/usr/local/bin",
		"/opt/homebrew/bin",
	}
	return strings.Join(extra, ":") + ":" + os.Getenv("PATH")
}

// ServerEnv returns the full child environment with the extended PATH.
func ServerEnv() []string {
	env := os.Environ()
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "PATH="+ExtendedPath())
}

// isInstalled probes the extended PATH for the server executable, falling
// back to exec.LookPath resolution.
func isInstalled(server *ServerConfig) bool {
	cmd := server.Command[0]
	for _, dir := range strings.Split(ExtendedPath(), ":") {
		full := filepath.Join(dir, cmd)
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			return true
		}
	}
	_, err := exec.LookPath(cmd)
	return err == nil
}

// PreferredNames lets config force a specific server per language key.
type PreferredNames interface {
	PreferredServer(languageKey string) string
}

// ServerForLanguage returns the server to use for a language id: the
// configured preferred server if installed, otherwise the first installed
// candidate in declaration order, otherwise the first candidate so startup
// surfaces the missing-binary failure.
func ServerForLanguage(languageID string, prefs PreferredNames) *ServerConfig {
	key := languageKey(languageID)
	if key == "" {
		return nil
	}
	candidates := servers[key]
	if len(candidates) == 0 {
		return nil
	}

	if prefs != nil {
		if name := prefs.PreferredServer(key); name != "" {
			for _, s := range candidates {
				if s.Name == name && isInstalled(s) {
					return s
				}
			}
		}
	}

	for _, s := range candidates {
		if isInstalled(s) {
			return s
		}
	}
	return candidates[0]
}

// Candidates returns the full candidate list for a language id, for
// diagnostics and install hints.
func Candidates(languageID string) []*ServerConfig {
	return servers[languageKey(languageID)]
}
