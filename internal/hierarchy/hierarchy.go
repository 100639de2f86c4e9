// Package hierarchy composes LSP call-hierarchy primitives into bounded
// traversals: outgoing/incoming trees and shortest-path search between two
// callables.
package hierarchy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/lantern/internal/index"
	"github.com/dshills/lantern/internal/lsp"
)

// Caller is the slice of the LSP client the traversal needs.
type Caller interface {
	PrepareCallHierarchy(ctx context.Context, path string, line, column int) ([]lsp.CallHierarchyItem, error)
	OutgoingCalls(ctx context.Context, item lsp.CallHierarchyItem) ([]lsp.CallHierarchyOutgoingCall, error)
	IncomingCalls(ctx context.Context, item lsp.CallHierarchyItem) ([]lsp.CallHierarchyIncomingCall, error)
}

// LSPCaller adapts *lsp.Client to Caller. Prepare takes the user's 1-based
// line and sends the 0-based line to the server.
type LSPCaller struct {
	Client *lsp.Client
}

func (c LSPCaller) PrepareCallHierarchy(ctx context.Context, path string, line, column int) ([]lsp.CallHierarchyItem, error) {
	if !c.Client.SupportsCallHierarchy() {
		return nil, fmt.Errorf("textDocument/prepareCallHierarchy is not supported by %s", c.Client.ServerName())
	}
	var items []lsp.CallHierarchyItem
	err := c.Client.Call(ctx, "textDocument/prepareCallHierarchy", lsp.CallHierarchyPrepareParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: lsp.FilePathToURI(path)},
			Position:     lsp.Position{Line: line - 1, Character: column},
		},
	}, &items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (c LSPCaller) OutgoingCalls(ctx context.Context, item lsp.CallHierarchyItem) ([]lsp.CallHierarchyOutgoingCall, error) {
	var calls []lsp.CallHierarchyOutgoingCall
	err := c.Client.Call(ctx, "callHierarchy/outgoingCalls", lsp.CallHierarchyItemParams{Item: item}, &calls)
	return calls, err
}

func (c LSPCaller) IncomingCalls(ctx context.Context, item lsp.CallHierarchyItem) ([]lsp.CallHierarchyIncomingCall, error) {
	var calls []lsp.CallHierarchyIncomingCall
	err := c.Client.Call(ctx, "callHierarchy/incomingCalls", lsp.CallHierarchyItemParams{Item: item}, &calls)
	return calls, err
}

// CallNode is one node of the rendered call tree. At most one of Calls or
// CalledBy is populated, matching the traversal direction; leaf nodes have
// neither.
type CallNode struct {
	Name     string     `json:"name"`
	Kind     string     `json:"kind,omitempty"`
	Detail   string     `json:"detail,omitempty"`
	Path     string     `json:"path,omitempty"`
	Line     int        `json:"line,omitempty"`
	Column   int        `json:"column,omitempty"`
	Calls    []CallNode `json:"calls,omitempty"`
	CalledBy []CallNode `json:"called_by,omitempty"`
}

// Traverser runs bounded DFS over the call graph with cycle detection via a
// shared visited set. Not safe for concurrent use; build one per request.
type Traverser struct {
	Caller              Caller
	WorkspaceRoot       string
	MaxDepth            int
	IncludeNonWorkspace bool

	visited map[string]bool
}

// itemKey identifies a node for cycle detection and path targeting.
func itemKey(item *lsp.CallHierarchyItem) string {
	return fmt.Sprintf("%s:%d:%s", item.URI, item.Range.Start.Line, item.Name)
}

// externalDirs are path components that mark a file as outside the
// workspace proper even when it sits under the root.
var externalDirs = map[string]bool{
	".venv":       true,
	"venv":        true,
	"node_modules": true,
	"vendor":      true,
	".git":        true,
	"__pycache__": true,
	"target":      true,
	"build":       true,
	"dist":        true,
}

// inWorkspace reports whether a URI names a file inside the workspace root
// and outside the external directories (stdlib, vendored deps, caches).
func (t *Traverser) inWorkspace(uri lsp.DocumentURI) bool {
	path := lsp.URIToFilePath(uri)
	rel, err := filepath.Rel(t.WorkspaceRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if externalDirs[part] {
			return false
		}
	}
	return true
}

func (t *Traverser) node(item *lsp.CallHierarchyItem) CallNode {
	path := lsp.URIToFilePath(item.URI)
	return CallNode{
		Name:   item.Name,
		Kind:   item.Kind.String(),
		Detail: item.Detail,
		Path:   index.RelativePath(path, t.WorkspaceRoot),
		Line:   item.SelectionRange.Start.Line + 1,
		Column: item.SelectionRange.Start.Character,
	}
}

// Root renders an item as the traversal root node.
func (t *Traverser) Root(item *lsp.CallHierarchyItem) CallNode {
	return t.node(item)
}

// Outgoing collects the outgoing call tree under item. Children appear in
// server order; a repeat visit of a node (cycle or diamond) yields no
// children.
func (t *Traverser) Outgoing(ctx context.Context, item *lsp.CallHierarchyItem, depth int) []CallNode {
	if depth >= t.MaxDepth {
		return nil
	}
	key := itemKey(item)
	if t.visited == nil {
		t.visited = make(map[string]bool)
	}
	if t.visited[key] {
		return nil
	}
	t.visited[key] = true

	calls, err := t.Caller.OutgoingCalls(ctx, *item)
	if err != nil {
		return nil
	}

	var out []CallNode
	for _, call := range calls {
		callee := call.To
		if !t.IncludeNonWorkspace && !t.inWorkspace(callee.URI) {
			continue
		}
		node := t.node(&callee)
		if children := t.Outgoing(ctx, &callee, depth+1); len(children) > 0 {
			node.Calls = children
		}
		out = append(out, node)
	}
	return out
}

// Incoming mirrors Outgoing over callers, populating CalledBy.
func (t *Traverser) Incoming(ctx context.Context, item *lsp.CallHierarchyItem, depth int) []CallNode {
	if depth >= t.MaxDepth {
		return nil
	}
	key := itemKey(item)
	if t.visited == nil {
		t.visited = make(map[string]bool)
	}
	if t.visited[key] {
		return nil
	}
	t.visited[key] = true

	calls, err := t.Caller.IncomingCalls(ctx, *item)
	if err != nil {
		return nil
	}

	var out []CallNode
	for _, call := range calls {
		caller := call.From
		if !t.IncludeNonWorkspace && !t.inWorkspace(caller.URI) {
			continue
		}
		node := t.node(&caller)
		if children := t.Incoming(ctx, &caller, depth+1); len(children) > 0 {
			node.CalledBy = children
		}
		out = append(out, node)
	}
	return out
}

// FindPath searches outgoing calls depth-first for the target item and
// returns the first path found, inclusive of both endpoints, or nil.
func (t *Traverser) FindPath(ctx context.Context, from, to *lsp.CallHierarchyItem) []CallNode {
	if t.visited == nil {
		t.visited = make(map[string]bool)
	}
	return t.findPath(ctx, from, itemKey(to), 0)
}

func (t *Traverser) findPath(ctx context.Context, item *lsp.CallHierarchyItem, targetKey string, depth int) []CallNode {
	if depth >= t.MaxDepth {
		return nil
	}
	key := itemKey(item)
	if t.visited[key] {
		return nil
	}
	t.visited[key] = true

	current := t.node(item)
	if key == targetKey {
		return []CallNode{current}
	}

	calls, err := t.Caller.OutgoingCalls(ctx, *item)
	if err != nil {
		return nil
	}

	for _, call := range calls {
		callee := call.To
		if !t.IncludeNonWorkspace && !t.inWorkspace(callee.URI) {
			continue
		}
		if path := t.findPath(ctx, &callee, targetKey, depth+1); path != nil {
			return append([]CallNode{current}, path...)
		}
	}
	return nil
}
