package edit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/lantern/internal/index"
	"github.com/dshills/lantern/internal/lsp"
	"github.com/dshills/lantern/internal/workspace"
)

// Refactor drives rename and move-file against a session.
type Refactor struct {
	Session *workspace.Session
	Log     *zap.Logger
}

// RenameResult lists the workspace-relative files a rename changed.
type RenameResult struct {
	FilesChanged []string `json:"files_changed"`
}

// MoveFileResult reports a move and whether any importing files changed.
type MoveFileResult struct {
	FilesChanged   []string `json:"files_changed"`
	ImportsUpdated bool     `json:"imports_updated"`
}

// Rename renames the symbol at (path, line, column) to newName across the
// workspace. Line is 1-based. Documents the edit will touch are closed
// before application so the server reindexes the rewritten files, and the
// server is told about every change via didChangeWatchedFiles.
func (r *Refactor) Rename(ctx context.Context, root, path string, line, column int, newName string) (*RenameResult, error) {
	ws, err := r.Session.WorkspaceForFile(ctx, path, root)
	if err != nil {
		return nil, err
	}
	if _, err := ws.EnsureDocumentOpen(ctx, path); err != nil {
		return nil, err
	}
	client := ws.Client()
	if client == nil {
		return nil, fmt.Errorf("no LSP client for %s", path)
	}

	var wsEdit *lsp.WorkspaceEdit
	err = client.Call(ctx, "textDocument/rename", lsp.RenameParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: lsp.FilePathToURI(path)},
			Position:     lsp.Position{Line: line - 1, Character: column},
		},
		NewName: newName,
	}, &wsEdit)
	if err != nil {
		if lsp.IsMethodNotFound(err) {
			return nil, fmt.Errorf("rename not supported by %s", ws.ServerName())
		}
		return nil, err
	}
	if wsEdit == nil {
		return nil, fmt.Errorf("rename not supported or failed")
	}

	// Close every to-be-modified document first; servers that keep a
	// document open do not reindex it from disk after the edit.
	touched := TouchedFiles(wsEdit)
	r.Log.Info("closing documents before rename", zap.Int("count", len(touched)))
	for _, file := range touched {
		ws.CloseDocument(ctx, file)
	}

	res, applyErr := Apply(wsEdit, root, nil)

	// One DELETE+CREATE pair per changed file forces index refresh; files
	// produced by a rename operation are covered by their own pair.
	var events []lsp.FileEvent
	renamedNew := make(map[string]bool)
	for _, pair := range res.RenamedFiles {
		events = append(events,
			lsp.FileEvent{URI: lsp.FilePathToURI(pair[0]), Type: lsp.FileDeleted},
			lsp.FileEvent{URI: lsp.FilePathToURI(pair[1]), Type: lsp.FileCreated},
		)
		renamedNew[pair[1]] = true
	}
	for _, rel := range res.ChangedFiles {
		abs := filepath.Join(root, rel)
		if renamedNew[abs] {
			continue
		}
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		events = append(events,
			lsp.FileEvent{URI: lsp.FilePathToURI(abs), Type: lsp.FileDeleted},
			lsp.FileEvent{URI: lsp.FilePathToURI(abs), Type: lsp.FileCreated},
		)
	}
	if len(events) > 0 {
		_ = ws.NotifyFilesChanged(ctx, events)
	}

	if workspace.RestartAfterRename(ws.ServerName()) {
		r.Log.Info("restarting workspace to refresh index after rename",
			zap.String("server", ws.ServerName()))
		r.Session.RestartWorkspace(ctx, root)
	}

	if applyErr != nil {
		return &RenameResult{FilesChanged: res.ChangedFiles}, applyErr
	}
	return &RenameResult{FilesChanged: res.ChangedFiles}, nil
}

// MoveFile moves oldPath to newPath via workspace/willRenameFiles so the
// server rewrites imports, then performs the physical move if the returned
// edit did not already do it.
func (r *Refactor) MoveFile(ctx context.Context, root, oldPath, newPath string) (*MoveFileResult, error) {
	if _, err := os.Stat(oldPath); err != nil {
		return nil, fmt.Errorf("source file does not exist: %s", oldPath)
	}
	if _, err := os.Stat(newPath); err == nil {
		return nil, fmt.Errorf("destination already exists: %s", newPath)
	}

	ws, err := r.Session.WorkspaceForFile(ctx, oldPath, root)
	if err != nil {
		return nil, err
	}
	client := ws.Client()
	if client == nil {
		return nil, fmt.Errorf("no LSP client for %s", oldPath)
	}

	caps := client.Capabilities()
	if !caps.SupportsWillRenameFiles() {
		return nil, fmt.Errorf("move-file is not supported by %s", ws.ServerName())
	}

	// Open the other files of the same extension so the server knows
	// enough of the workspace to rewrite their imports.
	ext := filepath.Ext(oldPath)
	var openedForIndexing []string
	_ = index.WalkSourceFiles(root, func(path string) {
		if filepath.Ext(path) != ext || path == oldPath || ws.IsDocumentOpen(path) {
			return
		}
		if _, err := ws.EnsureDocumentOpen(ctx, path); err == nil {
			openedForIndexing = append(openedForIndexing, path)
		}
	})
	if len(openedForIndexing) > 0 {
		// Brief settle so the server indexes what we just opened.
		time.Sleep(500 * time.Millisecond)
	}

	var wsEdit *lsp.WorkspaceEdit
	callErr := client.Call(ctx, "workspace/willRenameFiles", lsp.RenameFilesParams{
		Files: []lsp.FileRename{{
			OldURI: string(lsp.FilePathToURI(oldPath)),
			NewURI: string(lsp.FilePathToURI(newPath)),
		}},
	}, &wsEdit)
	if callErr != nil {
		r.Log.Debug("willRenameFiles failed", zap.Error(callErr))
		wsEdit = nil
	}

	for _, path := range openedForIndexing {
		ws.CloseDocument(ctx, path)
	}

	var changed []string
	fileMoved := false
	if wsEdit != nil {
		res, applyErr := Apply(wsEdit, root, &MoveRewrite{OldPath: oldPath, NewPath: newPath})
		if applyErr != nil {
			return nil, applyErr
		}
		changed = res.ChangedFiles
		fileMoved = res.FileMoved
	}

	newRel := index.RelativePath(newPath, root)
	if !fileMoved {
		if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
		if err := os.Rename(oldPath, newPath); err != nil {
			return nil, fmt.Errorf("move file: %w", err)
		}
		changed = append(changed, newRel)
	}

	seen := make(map[string]bool)
	deduped := changed[:0]
	for _, f := range changed {
		if !seen[f] {
			seen[f] = true
			deduped = append(deduped, f)
		}
	}
	sort.Strings(deduped)

	importsUpdated := false
	for _, f := range deduped {
		if f != newRel {
			importsUpdated = true
			break
		}
	}

	return &MoveFileResult{FilesChanged: deduped, ImportsUpdated: importsUpdated}, nil
}
