package daemon

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dshills/lantern/internal/index"
	"github.com/dshills/lantern/internal/lsp"
)

// LocationEntry is one rendered location in a query result. Lines are
// 1-based, columns 0-based; ContextLines, when requested, bracket the hit.
type LocationEntry struct {
	Path         string   `json:"path"`
	Line         int      `json:"line"`
	Column       int      `json:"column"`
	Name         string   `json:"name,omitempty"`
	Kind         string   `json:"kind,omitempty"`
	Detail       string   `json:"detail,omitempty"`
	ContextLines []string `json:"context_lines,omitempty"`
	ContextStart int      `json:"context_start,omitempty"`
}

// formatLocations renders locations relative to the workspace root, sorted
// by (path, line), optionally attaching context lines around each hit.
func formatLocations(locations []lsp.Location, workspaceRoot string, context int) []LocationEntry {
	out := make([]LocationEntry, 0, len(locations))
	for _, loc := range locations {
		path := lsp.URIToFilePath(loc.URI)
		entry := LocationEntry{
			Path:   index.RelativePath(path, workspaceRoot),
			Line:   loc.Range.Start.Line + 1,
			Column: loc.Range.Start.Character,
		}
		attachContext(&entry, path, context)
		out = append(out, entry)
	}
	sortEntries(out)
	return out
}

// formatTypeHierarchyItems renders type-hierarchy items, deduplicating
// positionally identical reoccurrences.
func formatTypeHierarchyItems(items []lsp.TypeHierarchyItem, workspaceRoot string, context int) []LocationEntry {
	seen := make(map[string]bool)
	out := make([]LocationEntry, 0, len(items))
	for _, item := range items {
		path := lsp.URIToFilePath(item.URI)
		entry := LocationEntry{
			Path:   index.RelativePath(path, workspaceRoot),
			Line:   item.SelectionRange.Start.Line + 1,
			Column: item.SelectionRange.Start.Character,
			Name:   item.Name,
			Kind:   item.Kind.String(),
			Detail: item.Detail,
		}
		key := fmt.Sprintf("%s:%d", entry.Path, entry.Line)
		if seen[key] {
			continue
		}
		seen[key] = true
		attachContext(&entry, path, context)
		out = append(out, entry)
	}
	sortEntries(out)
	return out
}

func attachContext(entry *LocationEntry, absPath string, context int) {
	if context <= 0 {
		return
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	center := entry.Line - 1
	start := center - context
	if start < 0 {
		start = 0
	}
	end := center + context
	if end > len(lines)-1 {
		end = len(lines) - 1
	}
	if start > end {
		return
	}
	entry.ContextLines = lines[start : end+1]
	entry.ContextStart = start + 1
}

func sortEntries(entries []LocationEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Path != entries[j].Path {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].Line < entries[j].Line
	})
}
