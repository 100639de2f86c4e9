package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/lantern/internal/cache"
	"github.com/dshills/lantern/internal/config"
	"github.com/dshills/lantern/internal/index"
	"github.com/dshills/lantern/internal/resolve"
)

// --- describe-session ---

func (s *Server) handleDescribeSession(_ context.Context) (any, error) {
	return map[string]any{
		"daemon_pid": os.Getpid(),
		"caches": map[string]cache.Stats{
			"hover_cache":  s.hoverCache.Stats(),
			"symbol_cache": s.symbolCache.Stats(),
		},
		"workspaces": s.session.Describe(),
	}, nil
}

// --- grep ---

type grepParams struct {
	WorkspaceRoot   string   `json:"workspace_root"`
	Pattern         string   `json:"pattern"`
	Kinds           []string `json:"kinds"`
	CaseSensitive   bool     `json:"case_sensitive"`
	IncludeDocs     bool     `json:"include_docs"`
	Paths           []string `json:"paths"`
	ExcludePatterns []string `json:"exclude_patterns"`
}

func (s *Server) handleGrep(ctx context.Context, p grepParams) (any, error) {
	if p.WorkspaceRoot == "" {
		return nil, invalidParams("missing workspace_root")
	}
	pattern := p.Pattern
	if pattern == "" {
		pattern = ".*"
	}
	if !p.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern '%s': %v", p.Pattern, err)
	}

	var symbols []index.Symbol
	if len(p.Paths) > 0 {
		symbols, err = s.indexer.CollectSymbolsForPaths(ctx, p.WorkspaceRoot, p.Paths)
	} else {
		symbols, err = s.indexer.CollectWorkspaceSymbols(ctx, p.WorkspaceRoot)
	}
	if err != nil {
		return nil, err
	}

	kinds := make(map[string]bool, len(p.Kinds))
	for _, k := range p.Kinds {
		kinds[strings.ToLower(k)] = true
	}

	matched := make([]index.Symbol, 0, len(symbols))
	for _, sym := range symbols {
		if index.IsExcluded(sym.Path, p.ExcludePatterns) {
			continue
		}
		if !re.MatchString(sym.Name) {
			continue
		}
		if len(kinds) > 0 && !kinds[strings.ToLower(sym.Kind)] {
			continue
		}
		matched = append(matched, sym)
	}

	result := map[string]any{"symbols": matched}
	if len(matched) == 0 && strings.Contains(p.Pattern, `\|`) {
		result["warning"] = "No results. Note: use '|' for alternation, not '\\|' (e.g., 'foo|bar' not 'foo\\|bar')"
	}
	return result, nil
}

// --- files ---

type filesParams struct {
	WorkspaceRoot   string   `json:"workspace_root"`
	Subpath         string   `json:"subpath"`
	ExcludePatterns []string `json:"exclude_patterns"`
	IncludePatterns []string `json:"include_patterns"`
}

type fileEntry struct {
	Path    string         `json:"path"`
	Bytes   int64          `json:"bytes"`
	Lines   int            `json:"lines"`
	Symbols map[string]any `json:"symbols"`
}

func (s *Server) handleFiles(_ context.Context, p filesParams) (any, error) {
	if p.WorkspaceRoot == "" {
		return nil, invalidParams("missing workspace_root")
	}
	target := p.WorkspaceRoot
	if p.Subpath != "" {
		target = p.Subpath
	}

	include := make(map[string]bool, len(p.IncludePatterns))
	for _, pat := range p.IncludePatterns {
		include[pat] = true
	}

	files := make(map[string]fileEntry)
	var totalBytes int64
	var totalLines int

	err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path == target {
				return nil
			}
			if include[name] {
				return nil
			}
			if index.IsExcludedDir(name) || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		relPath := index.RelativePath(path, p.WorkspaceRoot)
		if index.IsExcluded(relPath, p.ExcludePatterns) {
			return nil
		}

		var bytes int64
		if info, err := d.Info(); err == nil {
			bytes = info.Size()
		}
		lines := 0
		if data, err := os.ReadFile(path); err == nil {
			lines = countLines(string(data))
		}

		totalBytes += bytes
		totalLines += lines
		files[relPath] = fileEntry{Path: relPath, Bytes: bytes, Lines: lines, Symbols: map[string]any{}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"files":       files,
		"total_files": len(files),
		"total_bytes": totalBytes,
		"total_lines": totalLines,
	}, nil
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// --- resolve-symbol ---

type resolveSymbolParams struct {
	WorkspaceRoot string `json:"workspace_root"`
	SymbolPath    string `json:"symbol_path"`
}

func (s *Server) handleResolveSymbol(ctx context.Context, p resolveSymbolParams) (any, error) {
	if p.WorkspaceRoot == "" {
		return nil, invalidParams("missing workspace_root")
	}
	if p.SymbolPath == "" {
		return nil, invalidParams("missing symbol_path")
	}

	symbols, err := s.indexer.CollectWorkspaceSymbols(ctx, p.WorkspaceRoot)
	if err != nil {
		return nil, err
	}

	match, ambiguity, err := resolve.Resolve(symbols, p.SymbolPath, p.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	if match != nil {
		return match, nil
	}
	return map[string]any{
		"error":         fmt.Sprintf("Symbol '%s' is ambiguous (%d matches)", p.SymbolPath, ambiguity.Total),
		"matches":       ambiguity.Matches,
		"total_matches": ambiguity.Total,
	}, nil
}

// --- workspace management ---

type workspaceRootParams struct {
	WorkspaceRoot string `json:"workspace_root"`
}

func (s *Server) handleRestartWorkspace(ctx context.Context, p workspaceRootParams) (any, error) {
	if p.WorkspaceRoot == "" {
		return nil, invalidParams("missing workspace_root")
	}
	restarted := s.session.RestartWorkspace(ctx, p.WorkspaceRoot)
	return map[string]any{"restarted": restarted}, nil
}

func (s *Server) handleRemoveWorkspace(ctx context.Context, p workspaceRootParams) (any, error) {
	if p.WorkspaceRoot == "" {
		return nil, invalidParams("missing workspace_root")
	}
	stopped := s.session.CloseWorkspace(ctx, p.WorkspaceRoot)
	if _, err := config.RemoveWorkspaceRoot(p.WorkspaceRoot); err != nil {
		s.log.Warn("config update failed", zap.Error(err))
	}
	return map[string]any{"servers_stopped": stopped}, nil
}

func (s *Server) handleAddWorkspace(_ context.Context, p workspaceRootParams) (any, error) {
	if p.WorkspaceRoot == "" {
		return nil, invalidParams("missing workspace_root")
	}
	added, err := config.AddWorkspaceRoot(p.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	if cfg, err := config.Load(); err == nil {
		s.session.SetConfig(cfg)
	}
	return map[string]any{"added": added}, nil
}

// --- raw-lsp-request ---

type rawLSPRequestParams struct {
	WorkspaceRoot string          `json:"workspace_root"`
	Method        string          `json:"method"`
	Params        json.RawMessage `json:"params"`
	Language      string          `json:"language"`
}

func (s *Server) handleRawLSPRequest(ctx context.Context, p rawLSPRequestParams) (any, error) {
	if p.WorkspaceRoot == "" {
		return nil, invalidParams("missing workspace_root")
	}
	if p.Method == "" {
		return nil, invalidParams("missing method")
	}
	language := p.Language
	if language == "" {
		language = "python"
	}

	if _, err := s.session.WorkspaceForLanguage(ctx, language, p.WorkspaceRoot); err != nil {
		return nil, err
	}
	client := s.session.ClientForLanguage(language, p.WorkspaceRoot)
	if client == nil {
		return nil, fmt.Errorf("failed to get LSP client")
	}

	var params any = map[string]any{}
	if len(p.Params) > 0 {
		params = p.Params
	}
	raw, err := client.CallRaw(ctx, p.Method, params)
	if err != nil {
		return nil, fmt.Errorf("LSP error: %v", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}
