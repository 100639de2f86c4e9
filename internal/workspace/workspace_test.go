package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/lantern/internal/config"
	"github.com/dshills/lantern/internal/registry"
)

func testWorkspace(t *testing.T) (*Workspace, string) {
	t.Helper()
	root := t.TempDir()
	server := &registry.ServerConfig{
		Name:       "rust-analyzer",
		Command:    []string{"rust-analyzer"},
		Languages:  []string{"rust"},
		Extensions: []string{"*.rs"},
	}
	return New(root, server, 5*time.Second, zap.NewNop()), root
}

// Document lifecycle is exercised without a running server: notifications
// are skipped when the client is nil, but the open-document bookkeeping is
// identical.
func TestWorkspace_EnsureDocumentOpen(t *testing.T) {
	ws, root := testWorkspace(t)
	path := filepath.Join(root, "main.rs")
	if err := os.WriteFile(path, []byte("fn main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := ws.EnsureDocumentOpen(context.Background(), path)
	if err != nil {
		t.Fatalf("EnsureDocumentOpen: %v", err)
	}
	if doc.Version != 1 || doc.Content != "fn main() {}\n" || doc.LanguageID != "rust" {
		t.Errorf("got %+v", doc)
	}
	if !ws.IsDocumentOpen(path) {
		t.Error("document should be tracked as open")
	}
}

func TestWorkspace_EnsureDocumentOpen_UnchangedContentReturnsSameDoc(t *testing.T) {
	ws, root := testWorkspace(t)
	path := filepath.Join(root, "main.rs")
	if err := os.WriteFile(path, []byte("fn main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := ws.EnsureDocumentOpen(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ws.EnsureDocumentOpen(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("unchanged content must return the existing record")
	}
}

func TestWorkspace_EnsureDocumentOpen_ChangedContentReopens(t *testing.T) {
	ws, root := testWorkspace(t)
	path := filepath.Join(root, "main.rs")
	if err := os.WriteFile(path, []byte("fn main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := ws.EnsureDocumentOpen(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("fn main() { changed(); }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := ws.EnsureDocumentOpen(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("changed content must produce a fresh record")
	}
	if second.Content != "fn main() { changed(); }\n" {
		t.Errorf("content = %q", second.Content)
	}
	if second.Version != 1 {
		t.Errorf("reopened document starts at version 1, got %d", second.Version)
	}
}

func TestWorkspace_CloseDocument(t *testing.T) {
	ws, root := testWorkspace(t)
	path := filepath.Join(root, "main.rs")
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ws.EnsureDocumentOpen(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	ws.CloseDocument(context.Background(), path)
	if ws.IsDocumentOpen(path) {
		t.Error("document should be closed")
	}
	// Closing twice is a no-op.
	ws.CloseDocument(context.Background(), path)
}

func TestWorkspace_CloseAllDocuments(t *testing.T) {
	ws, root := testWorkspace(t)
	for _, name := range []string{"a.rs", "b.rs"} {
		path := filepath.Join(root, name)
		if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := ws.EnsureDocumentOpen(context.Background(), path); err != nil {
			t.Fatal(err)
		}
	}

	ws.CloseAllDocuments(context.Background())
	if uris := ws.OpenDocumentURIs(); len(uris) != 0 {
		t.Errorf("still open: %v", uris)
	}
}

func TestSession_DescribeEmpty(t *testing.T) {
	s := NewSession(config.Default(), zap.NewNop())
	if infos := s.Describe(); len(infos) != 0 {
		t.Errorf("fresh session should have no workspaces: %v", infos)
	}
}

func TestSession_CloseUnknownWorkspace(t *testing.T) {
	s := NewSession(config.Default(), zap.NewNop())
	if stopped := s.CloseWorkspace(context.Background(), "/nonexistent"); len(stopped) != 0 {
		t.Errorf("got %v", stopped)
	}
}

func TestSession_ExcludedLanguages(t *testing.T) {
	cfg := config.Default()
	cfg.Workspaces.ExcludedLanguages = []string{"Lua", "zig"}
	s := NewSession(cfg, zap.NewNop())

	set := s.ExcludedLanguages()
	if !set["lua"] || !set["zig"] {
		t.Errorf("got %v", set)
	}
}
