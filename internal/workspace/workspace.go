// Package workspace pairs workspace roots with language-server clients and
// owns the open-document lifecycle. A Workspace is one (root, server)
// binding; the Session is the process-global registry of workspaces.
package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/lantern/internal/lsp"
	"github.com/dshills/lantern/internal/registry"
)

// OpenDocument records what the server believes a document contains.
type OpenDocument struct {
	URI        lsp.DocumentURI
	Version    int
	Content    string
	LanguageID string
}

// Workspace binds one root directory to one language server and tracks the
// documents opened in it. The server's view of open documents always equals
// the docs map: every insert pairs with a didOpen and every removal with a
// didClose. Self-synchronized; safe for concurrent use.
type Workspace struct {
	root   string
	server *registry.ServerConfig

	mu      sync.Mutex
	client  *lsp.Client
	docs    map[lsp.DocumentURI]*OpenDocument
	timeout time.Duration
	log     *zap.Logger
}

// New creates a workspace without starting its server.
func New(root string, server *registry.ServerConfig, timeout time.Duration, log *zap.Logger) *Workspace {
	return &Workspace{
		root:    root,
		server:  server,
		docs:    make(map[lsp.DocumentURI]*OpenDocument),
		timeout: timeout,
		log:     log.Named("workspace").With(zap.String("root", root), zap.String("server", server.Name)),
	}
}

// Root returns the canonical workspace root.
func (w *Workspace) Root() string { return w.root }

// ServerName returns the registry name of the bound server.
func (w *Workspace) ServerName() string { return w.server.Name }

// Client returns the running LSP client, or nil before startup.
func (w *Workspace) Client() *lsp.Client {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.client
}

// StartServer spawns and initializes the language server. Idempotent: a
// second call while a client exists returns immediately. Concurrent callers
// serialize on the workspace lock, so exactly one of them drives startup.
func (w *Workspace) StartServer(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.client != nil {
		return nil
	}

	w.log.Info("starting server")
	client, err := lsp.Start(ctx, lsp.StartOptions{
		Command:               w.server.Command,
		WorkspaceRoot:         w.root,
		ServerName:            w.server.Name,
		Env:                   registry.ServerEnv(),
		InitializationOptions: initializationOptions(w.server.Name),
		RequestTimeout:        w.timeout,
		Logger:                w.log,
	})
	if err != nil {
		return fmt.Errorf(
			"language server %q for %s failed to start in workspace %s: %w",
			w.server.Name, strings.Join(w.server.Languages, ", "), w.root, err,
		)
	}

	client.WaitForIndexing(ctx, 60*time.Second)

	w.client = client
	if needsPreOpenIndexing(w.server.Name) {
		w.preOpenSourceFiles(ctx)
	}

	w.log.Info("server ready")
	return nil
}

// preOpenSourceFiles opens every matching source file so servers that only
// index opened files see the whole workspace, then closes them again.
// Called with the workspace lock held.
func (w *Workspace) preOpenSourceFiles(ctx context.Context) {
	skip := map[string]bool{"build": true, ".git": true, "node_modules": true}

	var files []string
	_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		for _, pattern := range w.server.Extensions {
			if ok, _ := filepath.Match(pattern, d.Name()); ok {
				files = append(files, path)
				break
			}
		}
		return nil
	})

	if len(files) == 0 {
		return
	}
	w.log.Info("pre-opening files for indexing", zap.Int("count", len(files)))
	for _, path := range files {
		_, _ = w.ensureDocumentOpenLocked(ctx, path)
	}
	w.client.WaitForIndexing(ctx, 30*time.Second)
	w.closeAllDocumentsLocked(ctx)
}

// StopServer shuts the server down and forgets all open documents.
func (w *Workspace) StopServer(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client == nil {
		return nil
	}
	w.log.Info("stopping server")
	err := w.client.Shutdown(ctx)
	w.client = nil
	w.docs = make(map[lsp.DocumentURI]*OpenDocument)
	return err
}

// EnsureDocumentOpen guarantees the server's view of path matches disk. An
// already-open document whose cached content equals the file is returned
// as-is; a stale one is closed and reopened with fresh content. Content is
// never patched incrementally because the daemon does not know what changed.
func (w *Workspace) EnsureDocumentOpen(ctx context.Context, path string) (*OpenDocument, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ensureDocumentOpenLocked(ctx, path)
}

func (w *Workspace) ensureDocumentOpenLocked(ctx context.Context, path string) (*OpenDocument, error) {
	uri := lsp.FilePathToURI(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	text := string(content)

	if doc, ok := w.docs[uri]; ok {
		if doc.Content == text {
			return doc, nil
		}
		w.closeDocumentLocked(ctx, uri)
	}

	doc := &OpenDocument{
		URI:        uri,
		Version:    1,
		Content:    text,
		LanguageID: lsp.LanguageID(path),
	}
	w.docs[uri] = doc

	if w.client != nil {
		params := lsp.DidOpenTextDocumentParams{
			TextDocument: lsp.TextDocumentItem{
				URI:        uri,
				LanguageID: doc.LanguageID,
				Version:    1,
				Text:       text,
			},
		}
		_ = w.client.Notify(ctx, "textDocument/didOpen", params)

		if wantsDocumentSymbolNudge(w.server.Name) {
			_, _ = w.client.CallRaw(ctx, "textDocument/documentSymbol", lsp.DocumentSymbolParams{
				TextDocument: lsp.TextDocumentIdentifier{URI: uri},
			})
		}
	}
	return doc, nil
}

// CloseDocument closes path if it is open.
func (w *Workspace) CloseDocument(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeDocumentLocked(ctx, lsp.FilePathToURI(path))
}

func (w *Workspace) closeDocumentLocked(ctx context.Context, uri lsp.DocumentURI) {
	if _, ok := w.docs[uri]; !ok {
		return
	}
	delete(w.docs, uri)
	if w.client != nil {
		_ = w.client.Notify(ctx, "textDocument/didClose", lsp.DidCloseTextDocumentParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: uri},
		})
	}
}

// CloseAllDocuments closes every open document.
func (w *Workspace) CloseAllDocuments(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeAllDocumentsLocked(ctx)
}

func (w *Workspace) closeAllDocumentsLocked(ctx context.Context) {
	if w.client != nil {
		for uri := range w.docs {
			_ = w.client.Notify(ctx, "textDocument/didClose", lsp.DidCloseTextDocumentParams{
				TextDocument: lsp.TextDocumentIdentifier{URI: uri},
			})
		}
	}
	w.docs = make(map[lsp.DocumentURI]*OpenDocument)
}

// IsDocumentOpen reports whether path is currently open.
func (w *Workspace) IsDocumentOpen(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.docs[lsp.FilePathToURI(path)]
	return ok
}

// OpenDocumentURIs returns the URIs of all open documents.
func (w *Workspace) OpenDocumentURIs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	uris := make([]string, 0, len(w.docs))
	for uri := range w.docs {
		uris = append(uris, string(uri))
	}
	return uris
}

// NotifyFilesChanged sends a didChangeWatchedFiles notification.
func (w *Workspace) NotifyFilesChanged(ctx context.Context, events []lsp.FileEvent) error {
	client := w.Client()
	if client == nil || len(events) == 0 {
		return nil
	}
	return client.Notify(ctx, "workspace/didChangeWatchedFiles", lsp.DidChangeWatchedFilesParams{
		Changes: events,
	})
}
