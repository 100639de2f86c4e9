package lsp

import (
	"net/url"
	"path/filepath"
	"strings"
)

var extensionLanguages = map[string]string{
	".py":   "python",
	".pyi":  "python",
	".rs":   "rust",
	".ts":   "typescript",
	".tsx":  "typescriptreact",
	".js":   "javascript",
	".jsx":  "javascriptreact",
	".go":   "go",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".cc":   "cpp",
	".cxx":  "cpp",
	".hxx":  "cpp",
	".java": "java",
	".rb":   "ruby",
	".rake": "ruby",
	".php":  "php",
	".phtml": "php",
	".ex":   "elixir",
	".exs":  "elixir",
	".hs":   "haskell",
	".ml":   "ocaml",
	".mli":  "ocaml",
	".lua":  "lua",
	".zig":  "zig",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".html": "html",
	".htm":  "html",
	".css":  "css",
	".scss": "scss",
	".less": "less",
	".md":   "markdown",
	".markdown": "markdown",
	".toml": "toml",
	".xml":  "xml",
	".sh":   "shellscript",
	".bash": "shellscript",
	".sql":  "sql",
}

var filenameLanguages = map[string]string{
	"Gemfile":     "ruby",
	"Rakefile":    "ruby",
	"Makefile":    "makefile",
	"makefile":    "makefile",
	"GNUmakefile": "makefile",
	"Dockerfile":  "dockerfile",
}

// LanguageID returns the LSP language id for a file path, or "plaintext"
// when the file is not a recognized source type.
func LanguageID(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	if lang, ok := filenameLanguages[filepath.Base(path)]; ok {
		return lang
	}
	return "plaintext"
}

// FilePathToURI converts an absolute or relative file path to a file:// URI.
func FilePathToURI(path string) DocumentURI {
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return DocumentURI(u.String())
}

// URIToFilePath converts a file:// URI back to a filesystem path. Non-file
// URIs are returned as-is so callers can surface them in errors.
func URIToFilePath(uri DocumentURI) string {
	if uri == "" {
		return ""
	}
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}
	return filepath.FromSlash(u.Path)
}
