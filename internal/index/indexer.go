package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/lantern/internal/cache"
	"github.com/dshills/lantern/internal/lsp"
	"github.com/dshills/lantern/internal/registry"
	"github.com/dshills/lantern/internal/workspace"
)

// Indexer produces workspace symbol sets, consulting the symbol cache keyed
// by (path, root, content hash) so only changed files hit the server.
type Indexer struct {
	session *workspace.Session
	symbols *cache.Store
	log     *zap.Logger
}

// NewIndexer wires an indexer to a session and symbol cache.
func NewIndexer(session *workspace.Session, symbols *cache.Store, log *zap.Logger) *Indexer {
	return &Indexer{
		session: session,
		symbols: symbols,
		log:     log.Named("index"),
	}
}

// CollectWorkspaceSymbols walks root, groups files by language, and returns
// the flat symbol records of every indexable file. Languages are processed
// one at a time (different servers cannot cooperate); files within a
// language are indexed in parallel up to the CPU count.
func (ix *Indexer) CollectWorkspaceSymbols(ctx context.Context, root string) ([]Symbol, error) {
	excluded := ix.session.ExcludedLanguages()

	byLanguage := make(map[string][]string)
	err := WalkSourceFiles(root, func(path string) {
		lang := lsp.LanguageID(path)
		if lang == "plaintext" || excluded[lang] {
			return
		}
		if registry.ServerForLanguage(lang, ix.session.Config()) == nil {
			return
		}
		byLanguage[lang] = append(byLanguage[lang], path)
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return ix.collectGrouped(ctx, root, byLanguage)
}

// CollectSymbolsForPaths indexes only the given files, grouped by language.
func (ix *Indexer) CollectSymbolsForPaths(ctx context.Context, root string, paths []string) ([]Symbol, error) {
	byLanguage := make(map[string][]string)
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		lang := lsp.LanguageID(path)
		if lang == "plaintext" {
			continue
		}
		byLanguage[lang] = append(byLanguage[lang], path)
	}
	return ix.collectGrouped(ctx, root, byLanguage)
}

func (ix *Indexer) collectGrouped(ctx context.Context, root string, byLanguage map[string][]string) ([]Symbol, error) {
	languages := make([]string, 0, len(byLanguage))
	for lang := range byLanguage {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	var all []Symbol
	for _, lang := range languages {
		ws, err := ix.session.WorkspaceForLanguage(ctx, lang, root)
		if err != nil {
			ix.log.Warn("workspace unavailable", zap.String("language", lang), zap.Error(err))
			continue
		}
		all = append(all, ix.indexFiles(ctx, ws, root, byLanguage[lang])...)
	}
	return all, nil
}

// indexFiles runs per-file symbol collection bounded by a CPU-sized
// semaphore.
func (ix *Indexer) indexFiles(ctx context.Context, ws *workspace.Workspace, root string, files []string) []Symbol {
	sem := semaphore.NewWeighted(int64(runtime.NumCPU()))

	var mu sync.Mutex
	var out []Symbol
	var wg sync.WaitGroup

	for _, file := range files {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(file string) {
			defer wg.Done()
			defer sem.Release(1)
			symbols := ix.fileSymbols(ctx, ws, root, file)
			mu.Lock()
			out = append(out, symbols...)
			mu.Unlock()
		}(file)
	}
	wg.Wait()
	return out
}

func cacheKey(path, root, hash string) string {
	return fmt.Sprintf("%s|%s|%s", path, root, hash)
}

// fileSymbols returns the flat symbols of one file, from cache when the
// content hash matches. After a server round-trip the hash is recomputed so
// a file mutated mid-request does not poison the cache under a stale key.
func (ix *Indexer) fileSymbols(ctx context.Context, ws *workspace.Workspace, root, path string) []Symbol {
	hash := cache.FileHash(path)

	var cached []Symbol
	if hash != "" && ix.symbols.Get(cacheKey(path, root, hash), &cached) {
		return cached
	}

	relPath := RelativePath(path, root)

	if _, err := ws.EnsureDocumentOpen(ctx, path); err != nil {
		ix.log.Debug("open failed", zap.String("path", path), zap.Error(err))
		return nil
	}

	client := ws.Client()
	if client == nil {
		return nil
	}

	var resp lsp.DocumentSymbolResponse
	err := client.Call(ctx, "textDocument/documentSymbol", lsp.DocumentSymbolParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.FilePathToURI(path)},
	}, &resp)

	var symbols []Symbol
	if err != nil {
		ix.log.Debug("documentSymbol failed", zap.String("path", path), zap.Error(err))
		symbols = nil
	} else {
		symbols = Flatten(&resp, relPath)
	}

	if finalHash := cache.FileHash(path); finalHash != "" {
		ix.symbols.Set(cacheKey(path, root, finalHash), symbols)
	}
	return symbols
}

// RelativePath renders path relative to root, preferring canonical forms;
// paths outside root are returned unchanged.
func RelativePath(path, root string) string {
	canonPath := path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		canonPath = resolved
	}
	canonRoot := root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		canonRoot = resolved
	}
	if rel, err := filepath.Rel(canonRoot, canonPath); err == nil && !isOutside(rel) {
		return rel
	}
	return path
}

func isOutside(rel string) bool {
	return rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
