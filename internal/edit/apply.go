// Package edit applies LSP WorkspaceEdits to disk and orchestrates the
// rename and move-file operations built on them.
package edit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/dshills/lantern/internal/index"
	"github.com/dshills/lantern/internal/lsp"
)

// MoveRewrite redirects edits targeting OldPath onto NewPath while applying
// a willRenameFiles edit: the server describes changes against the old
// location, but the file ends up at the new one.
type MoveRewrite struct {
	OldPath string
	NewPath string
}

// ApplyResult reports what an edit application actually did.
type ApplyResult struct {
	// ChangedFiles is the sorted, deduplicated list of workspace-relative
	// files that were modified, created, or renamed. Empty edit lists do
	// not count as changes.
	ChangedFiles []string

	// RenamedFiles holds (old, new) absolute path pairs performed by
	// rename resource operations.
	RenamedFiles [][2]string

	// FileMoved is set when a rename resource operation covered exactly
	// the MoveRewrite pair, meaning the physical move already happened.
	FileMoved bool
}

// Apply executes a WorkspaceEdit: the Changes map and the DocumentChanges
// list in the order presented. Partial application is possible on I/O
// failure; callers see which files did change. rewrite may be nil.
func Apply(edit *lsp.WorkspaceEdit, workspaceRoot string, rewrite *MoveRewrite) (*ApplyResult, error) {
	res := &ApplyResult{}
	changed := make(map[string]bool)

	record := func(path string) {
		changed[index.RelativePath(path, workspaceRoot)] = true
	}

	for uri, edits := range edit.Changes {
		if len(edits) == 0 {
			continue
		}
		path := targetPath(lsp.URIToFilePath(uri), rewrite)
		if err := applyTextEdits(path, edits); err != nil {
			return finish(res, changed), err
		}
		record(path)
	}

	for _, change := range edit.DocumentChanges {
		switch {
		case change.TextDocumentEdit != nil:
			edits := make([]lsp.TextEdit, 0, len(change.TextDocumentEdit.Edits))
			for _, e := range change.TextDocumentEdit.Edits {
				edits = append(edits, e.TextEdit)
			}
			if len(edits) == 0 {
				continue
			}
			path := targetPath(lsp.URIToFilePath(change.TextDocumentEdit.TextDocument.URI), rewrite)
			if err := applyTextEdits(path, edits); err != nil {
				return finish(res, changed), err
			}
			record(path)

		case change.CreateFile != nil:
			path := lsp.URIToFilePath(change.CreateFile.URI)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
				_ = os.WriteFile(path, nil, 0o644)
			}
			record(path)

		case change.RenameFile != nil:
			oldPath := lsp.URIToFilePath(change.RenameFile.OldURI)
			newPath := lsp.URIToFilePath(change.RenameFile.NewURI)
			if rewrite != nil && oldPath == rewrite.OldPath && newPath == rewrite.NewPath {
				res.FileMoved = true
			}
			_ = os.MkdirAll(filepath.Dir(newPath), 0o755)
			if _, err := os.Stat(oldPath); err == nil {
				_ = os.Rename(oldPath, newPath)
			}
			res.RenamedFiles = append(res.RenamedFiles, [2]string{oldPath, newPath})
			record(newPath)

		case change.DeleteFile != nil:
			_ = os.Remove(lsp.URIToFilePath(change.DeleteFile.URI))
		}
	}

	return finish(res, changed), nil
}

func finish(res *ApplyResult, changed map[string]bool) *ApplyResult {
	res.ChangedFiles = make([]string, 0, len(changed))
	for path := range changed {
		res.ChangedFiles = append(res.ChangedFiles, path)
	}
	sort.Strings(res.ChangedFiles)
	return res
}

func targetPath(path string, rewrite *MoveRewrite) string {
	if rewrite != nil && path == rewrite.OldPath {
		return rewrite.NewPath
	}
	return path
}

// TouchedFiles returns every file a WorkspaceEdit will modify or remove,
// used to close documents before applying so servers reindex from disk.
func TouchedFiles(edit *lsp.WorkspaceEdit) []string {
	var files []string
	for uri := range edit.Changes {
		files = append(files, lsp.URIToFilePath(uri))
	}
	for _, change := range edit.DocumentChanges {
		switch {
		case change.TextDocumentEdit != nil:
			files = append(files, lsp.URIToFilePath(change.TextDocumentEdit.TextDocument.URI))
		case change.RenameFile != nil:
			files = append(files, lsp.URIToFilePath(change.RenameFile.OldURI))
		case change.DeleteFile != nil:
			files = append(files, lsp.URIToFilePath(change.DeleteFile.URI))
		}
	}
	sort.Strings(files)
	return files
}

// applyTextEdits rewrites one file. Edits are applied in descending start
// order so earlier edits never invalidate the positions of later ones; an
// edit replaces the half-open range [start, end) where characters are
// UTF-16 code-unit offsets.
func applyTextEdits(path string, edits []lsp.TextEdit) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)
	hadTrailingNewline := strings.HasSuffix(content, "\n")
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")

	sorted := make([]lsp.TextEdit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Range.Start, sorted[j].Range.Start
		if a.Line != b.Line {
			return a.Line > b.Line
		}
		return a.Character > b.Character
	})

	for _, e := range sorted {
		lines = applyOneEdit(lines, e)
	}

	out := strings.Join(lines, "\n")
	if hadTrailingNewline {
		out += "\n"
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func applyOneEdit(lines []string, e lsp.TextEdit) []string {
	startLine := e.Range.Start.Line
	endLine := e.Range.End.Line

	for len(lines) <= startLine {
		lines = append(lines, "")
	}

	prefix := lines[startLine][:byteOffset(lines[startLine], e.Range.Start.Character)]

	suffix := ""
	if endLine < len(lines) {
		suffix = lines[endLine][byteOffset(lines[endLine], e.Range.End.Character):]
	}

	lastRemoved := endLine
	if lastRemoved >= len(lines) {
		lastRemoved = len(lines) - 1
	}
	rest := lines[lastRemoved+1:]

	newLines := strings.Split(e.NewText, "\n")
	replacement := make([]string, 0, len(newLines))
	for i, nl := range newLines {
		switch {
		case len(newLines) == 1:
			replacement = append(replacement, prefix+nl+suffix)
		case i == 0:
			replacement = append(replacement, prefix+nl)
		case i == len(newLines)-1:
			replacement = append(replacement, nl+suffix)
		default:
			replacement = append(replacement, nl)
		}
	}

	out := make([]string, 0, startLine+len(replacement)+len(rest))
	out = append(out, lines[:startLine]...)
	out = append(out, replacement...)
	out = append(out, rest...)
	return out
}

// byteOffset converts a UTF-16 code-unit column to a byte offset within
// line, clamping past-the-end columns to the line length.
func byteOffset(line string, utf16Col int) int {
	if utf16Col <= 0 {
		return 0
	}
	units := 0
	for i, r := range line {
		if units >= utf16Col {
			return i
		}
		units += utf16.RuneLen(r)
	}
	return len(line)
}
