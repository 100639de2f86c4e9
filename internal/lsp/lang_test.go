package lsp

import (
	"strings"
	"testing"
)

func TestLanguageID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.py", "python"},
		{"types.pyi", "python"},
		{"lib.rs", "rust"},
		{"app.ts", "typescript"},
		{"app.tsx", "typescriptreact"},
		{"main.go", "go"},
		{"hdr.h", "c"},
		{"impl.cc", "cpp"},
		{"Main.java", "java"},
		{"tool.rake", "ruby"},
		{"conf.lua", "lua"},
		{"build.zig", "zig"},
		{"Gemfile", "ruby"},
		{"Rakefile", "ruby"},
		{"Makefile", "makefile"},
		{"Dockerfile", "dockerfile"},
		{"notes.txt", "plaintext"},
		{"README", "plaintext"},
	}
	for _, tt := range tests {
		if got := LanguageID(tt.path); got != tt.want {
			t.Errorf("LanguageID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestURIRoundTrip(t *testing.T) {
	path := "/home/user/project/src/main.rs"
	uri := FilePathToURI(path)
	if !strings.HasPrefix(string(uri), "file://") {
		t.Fatalf("bad URI %q", uri)
	}
	if got := URIToFilePath(uri); got != path {
		t.Errorf("round trip = %q, want %q", got, path)
	}
}

func TestURIToFilePath_NonFile(t *testing.T) {
	if got := URIToFilePath("untitled:Untitled-1"); got != "untitled:Untitled-1" {
		t.Errorf("non-file URI should pass through, got %q", got)
	}
}

func TestSymbolKindString(t *testing.T) {
	if SymbolKindInterface.String() != "Interface" {
		t.Errorf("Interface = %q", SymbolKindInterface.String())
	}
	if SymbolKindStruct.String() != "Struct" {
		t.Errorf("Struct = %q", SymbolKindStruct.String())
	}
	if SymbolKind(99).String() != "Variable" {
		t.Errorf("out of range kind should map to Variable")
	}
}
