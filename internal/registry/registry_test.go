package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type prefs map[string]string

func (p prefs) PreferredServer(key string) string { return p[key] }

func TestLanguageKey(t *testing.T) {
	tests := []struct{ lang, key string }{
		{"python", "python"},
		{"typescript", "typescript"},
		{"typescriptreact", "typescript"},
		{"javascript", "typescript"},
		{"cpp", "c"},
		{"c", "c"},
		{"rust", "rust"},
		{"plaintext", ""},
		{"markdown", ""},
	}
	for _, tt := range tests {
		if got := languageKey(tt.lang); got != tt.key {
			t.Errorf("languageKey(%q) = %q, want %q", tt.lang, got, tt.key)
		}
	}
}

func TestServerForLanguage_UnknownLanguage(t *testing.T) {
	if s := ServerForLanguage("cobol", nil); s != nil {
		t.Errorf("got %v, want nil", s)
	}
}

func TestServerForLanguage_FallsBackToFirstCandidate(t *testing.T) {
	// With an empty PATH nothing is installed; selection must still
	// return the first candidate so startup surfaces the failure.
	t.Setenv("PATH", "")
	t.Setenv("HOME", t.TempDir())

	s := ServerForLanguage("python", nil)
	if s == nil || s.Name != "basedpyright" {
		t.Errorf("got %v, want first candidate basedpyright", s)
	}
}

func TestServerForLanguage_PicksInstalledCandidate(t *testing.T) {
	bin := t.TempDir()
	fake := filepath.Join(bin, "pylsp")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", bin)
	t.Setenv("HOME", t.TempDir())

	s := ServerForLanguage("python", nil)
	if s == nil || s.Name != "pylsp" {
		t.Errorf("got %v, want installed pylsp over missing basedpyright", s)
	}
}

func TestServerForLanguage_PreferredWins(t *testing.T) {
	bin := t.TempDir()
	for _, name := range []string{"basedpyright-langserver", "pylsp"} {
		if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", bin)
	t.Setenv("HOME", t.TempDir())

	s := ServerForLanguage("python", prefs{"python": "pylsp"})
	if s == nil || s.Name != "pylsp" {
		t.Errorf("got %v, want preferred pylsp", s)
	}
}

func TestExtendedPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PATH", "/usr/bin")

	path := ExtendedPath()
	for _, want := range []string{
		filepath.Join(home, "go", "bin"),
		filepath.Join(home, ".cargo", "bin"),
		"/usr/local/bin",
		"/usr/bin",
	} {
		if !strings.Contains(path, want) {
			t.Errorf("extended PATH missing %q: %s", want, path)
		}
	}
}

func TestServerEnv_ReplacesPath(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	t.Setenv("HOME", t.TempDir())

	env := ServerEnv()
	count := 0
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			count++
			if !strings.Contains(kv, "/usr/local/bin") {
				t.Errorf("PATH not extended: %s", kv)
			}
		}
	}
	if count != 1 {
		t.Errorf("PATH appears %d times", count)
	}
}

func TestCandidates(t *testing.T) {
	if got := Candidates("javascript"); len(got) != 1 || got[0].Name != "typescript-language-server" {
		t.Errorf("got %v", got)
	}
}
