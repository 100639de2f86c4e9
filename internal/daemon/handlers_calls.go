package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/lantern/internal/hierarchy"
	"github.com/dshills/lantern/internal/lsp"
)

type callsParams struct {
	WorkspaceRoot       string `json:"workspace_root"`
	Mode                string `json:"mode"`
	FromPath            string `json:"from_path"`
	FromLine            int    `json:"from_line"`
	FromColumn          int    `json:"from_column"`
	FromSymbol          string `json:"from_symbol"`
	ToPath              string `json:"to_path"`
	ToLine              int    `json:"to_line"`
	ToColumn            int    `json:"to_column"`
	ToSymbol            string `json:"to_symbol"`
	MaxDepth            int    `json:"max_depth"`
	IncludeNonWorkspace bool   `json:"include_non_workspace"`
}

type callsResult struct {
	Root    *hierarchy.CallNode  `json:"root,omitempty"`
	Path    []hierarchy.CallNode `json:"path,omitempty"`
	Message string               `json:"message,omitempty"`
}

func (s *Server) handleCalls(ctx context.Context, p callsParams) (any, error) {
	if p.WorkspaceRoot == "" {
		return nil, invalidParams("missing workspace_root")
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = 3
	}

	switch p.Mode {
	case "outgoing":
		return s.callsTree(ctx, p, true)
	case "incoming":
		return s.callsTree(ctx, p, false)
	case "path":
		return s.callsPath(ctx, p)
	default:
		return nil, invalidParams("unknown calls mode %q", p.Mode)
	}
}

// prepareAt opens the document and prepares the call-hierarchy item at the
// position. Indexing is awaited first to dodge "content modified" races on
// servers that reindex aggressively.
func (s *Server) prepareAt(ctx context.Context, root, path string, line, column int) (*hierarchy.LSPCaller, []lsp.CallHierarchyItem, error) {
	ws, err := s.session.WorkspaceForFile(ctx, path, root)
	if err != nil {
		return nil, nil, err
	}
	if _, err := ws.EnsureDocumentOpen(ctx, path); err != nil {
		return nil, nil, err
	}
	client := ws.Client()
	if client == nil {
		return nil, nil, fmt.Errorf("no LSP client")
	}
	client.WaitForIndexing(ctx, 30*time.Second)

	caller := &hierarchy.LSPCaller{Client: client}
	items, err := caller.PrepareCallHierarchy(ctx, path, line, column)
	if err != nil {
		return nil, nil, err
	}
	return caller, items, nil
}

func (s *Server) callsTree(ctx context.Context, p callsParams, outgoing bool) (any, error) {
	path, line, column := p.FromPath, p.FromLine, p.FromColumn
	which := "from"
	if !outgoing {
		path, line, column = p.ToPath, p.ToLine, p.ToColumn
		which = "to"
	}
	if path == "" {
		return nil, invalidParams("%s_path required for %s mode", which, p.Mode)
	}
	if line <= 0 {
		return nil, invalidParams("%s_line required for %s mode", which, p.Mode)
	}

	caller, items, err := s.prepareAt(ctx, p.WorkspaceRoot, path, line, column)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return callsResult{Message: "No call hierarchy item found at location"}, nil
	}

	t := &hierarchy.Traverser{
		Caller:              caller,
		WorkspaceRoot:       p.WorkspaceRoot,
		MaxDepth:            p.MaxDepth,
		IncludeNonWorkspace: p.IncludeNonWorkspace,
	}

	root := t.Root(&items[0])
	if outgoing {
		root.Calls = t.Outgoing(ctx, &items[0], 0)
	} else {
		root.CalledBy = t.Incoming(ctx, &items[0], 0)
	}
	return callsResult{Root: &root}, nil
}

func (s *Server) callsPath(ctx context.Context, p callsParams) (any, error) {
	switch {
	case p.FromPath == "":
		return nil, invalidParams("from_path required for path mode")
	case p.FromLine <= 0:
		return nil, invalidParams("from_line required for path mode")
	case p.ToPath == "":
		return nil, invalidParams("to_path required for path mode")
	case p.ToLine <= 0:
		return nil, invalidParams("to_line required for path mode")
	}

	caller, fromItems, err := s.prepareAt(ctx, p.WorkspaceRoot, p.FromPath, p.FromLine, p.FromColumn)
	if err != nil {
		return nil, err
	}
	_, toItems, err := s.prepareAt(ctx, p.WorkspaceRoot, p.ToPath, p.ToLine, p.ToColumn)
	if err != nil {
		return nil, err
	}
	if len(fromItems) == 0 || len(toItems) == 0 {
		return callsResult{Message: "Could not find call hierarchy items"}, nil
	}

	t := &hierarchy.Traverser{
		Caller:              caller,
		WorkspaceRoot:       p.WorkspaceRoot,
		MaxDepth:            p.MaxDepth,
		IncludeNonWorkspace: p.IncludeNonWorkspace,
	}

	path := t.FindPath(ctx, &fromItems[0], &toItems[0])
	if path == nil {
		return callsResult{Message: fmt.Sprintf(
			"No call path found from '%s' to '%s' within depth %d",
			p.FromSymbol, p.ToSymbol, p.MaxDepth,
		)}, nil
	}
	return callsResult{Path: path}, nil
}
