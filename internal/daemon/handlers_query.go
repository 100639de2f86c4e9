package daemon

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dshills/lantern/internal/index"
	"github.com/dshills/lantern/internal/lsp"
)

// positionParams is the common (file, position) request shape. Lines are
// 1-based as everywhere on the client surface.
type positionParams struct {
	WorkspaceRoot string `json:"workspace_root"`
	Path          string `json:"path"`
	Line          int    `json:"line"`
	Column        int    `json:"column"`
	Context       int    `json:"context"`
}

func (p *positionParams) validate() error {
	if p.WorkspaceRoot == "" {
		return invalidParams("missing workspace_root")
	}
	if p.Path == "" {
		return invalidParams("missing path")
	}
	if p.Line <= 0 {
		return invalidParams("missing line")
	}
	return nil
}

// openAndClient ensures the workspace and document, returning the client.
func (s *Server) openAndClient(ctx context.Context, p *positionParams) (*lsp.Client, error) {
	if _, err := s.session.WorkspaceForFile(ctx, p.Path, p.WorkspaceRoot); err != nil {
		return nil, err
	}
	if _, err := s.session.EnsureDocumentOpen(ctx, p.Path, p.WorkspaceRoot); err != nil {
		return nil, err
	}
	client := s.session.ClientForFile(p.Path, p.WorkspaceRoot)
	if client == nil {
		return nil, fmt.Errorf("failed to get LSP client")
	}
	return client, nil
}

func (s *Server) handleReferences(ctx context.Context, p positionParams) (any, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	client, err := s.openAndClient(ctx, &p)
	if err != nil {
		return nil, err
	}

	var locations []lsp.Location
	err = client.Call(ctx, "textDocument/references", lsp.ReferenceParams{
		TextDocumentPositionParams: lsp.TextDocumentPositionParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: lsp.FilePathToURI(p.Path)},
			Position:     lsp.Position{Line: p.Line - 1, Character: p.Column},
		},
		Context: lsp.ReferenceContext{IncludeDeclaration: true},
	}, &locations)
	if err != nil {
		return nil, fmt.Errorf("LSP error: %v", err)
	}

	return map[string]any{
		"locations": formatLocations(locations, p.WorkspaceRoot, p.Context),
	}, nil
}

func (s *Server) handleDeclaration(ctx context.Context, p positionParams) (any, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	client, err := s.openAndClient(ctx, &p)
	if err != nil {
		return nil, err
	}

	raw, err := client.CallRaw(ctx, "textDocument/declaration", lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.FilePathToURI(p.Path)},
		Position:     lsp.Position{Line: p.Line - 1, Character: p.Column},
	})
	if err != nil {
		if lsp.IsMethodNotFound(err) {
			return nil, fmt.Errorf("Declaration not supported by this language server")
		}
		return nil, fmt.Errorf("LSP error: %v", err)
	}

	return map[string]any{
		"locations": formatLocations(lsp.ParseLocations(raw), p.WorkspaceRoot, p.Context),
	}, nil
}

func (s *Server) handleImplementations(ctx context.Context, p positionParams) (any, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	client, err := s.openAndClient(ctx, &p)
	if err != nil {
		return nil, err
	}

	raw, err := client.CallRaw(ctx, "textDocument/implementation", lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.FilePathToURI(p.Path)},
		Position:     lsp.Position{Line: p.Line - 1, Character: p.Column},
	})
	if err != nil {
		if lsp.IsMethodNotFound(err) {
			return map[string]any{
				"locations": []LocationEntry{},
				"error":     "Implementations not supported by this language server",
			}, nil
		}
		return nil, fmt.Errorf("LSP error: %v", err)
	}

	return map[string]any{
		"locations": formatLocations(lsp.ParseLocations(raw), p.WorkspaceRoot, p.Context),
	}, nil
}

func (s *Server) handleSubtypes(ctx context.Context, p positionParams) (any, error) {
	return s.handleTypeHierarchy(ctx, p, "typeHierarchy/subtypes")
}

func (s *Server) handleSupertypes(ctx context.Context, p positionParams) (any, error) {
	return s.handleTypeHierarchy(ctx, p, "typeHierarchy/supertypes")
}

func (s *Server) handleTypeHierarchy(ctx context.Context, p positionParams, method string) (any, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	client, err := s.openAndClient(ctx, &p)
	if err != nil {
		return nil, err
	}

	kind := "Supertypes"
	if strings.HasSuffix(method, "subtypes") {
		kind = "Subtypes"
	}

	var items []lsp.TypeHierarchyItem
	err = client.Call(ctx, "textDocument/prepareTypeHierarchy", lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.FilePathToURI(p.Path)},
		Position:     lsp.Position{Line: p.Line - 1, Character: p.Column},
	}, &items)
	if err != nil {
		if lsp.IsMethodNotFound(err) {
			return nil, fmt.Errorf("%s not supported by this language server", kind)
		}
		return nil, fmt.Errorf("LSP error: %v", err)
	}
	if len(items) == 0 {
		return map[string]any{"locations": []LocationEntry{}}, nil
	}

	var related []lsp.TypeHierarchyItem
	err = client.Call(ctx, method, lsp.TypeHierarchyItemParams{Item: items[0]}, &related)
	if err != nil {
		return nil, fmt.Errorf("LSP error: %v", err)
	}

	return map[string]any{
		"locations": formatTypeHierarchyItems(related, p.WorkspaceRoot, p.Context),
	}, nil
}

// --- show ---

type showParams struct {
	WorkspaceRoot  string `json:"workspace_root"`
	Path           string `json:"path"`
	Line           int    `json:"line"`
	Context        int    `json:"context"`
	Head           int    `json:"head"`
	Symbol         string `json:"symbol"`
	Kind           string `json:"kind"`
	RangeStartLine int    `json:"range_start_line"`
	RangeEndLine   int    `json:"range_end_line"`
}

// handleShow extracts a symbol's source: either the explicit range the
// caller already resolved, or the enclosing documentSymbol range for the
// given line. Single-line Constant/Variable ranges are expanded across
// unbalanced brackets and multiline strings so initializers read whole.
func (s *Server) handleShow(ctx context.Context, p showParams) (any, error) {
	if p.WorkspaceRoot == "" {
		return nil, invalidParams("missing workspace_root")
	}
	if p.Path == "" {
		return nil, invalidParams("missing path")
	}
	if p.Line <= 0 && p.RangeStartLine <= 0 {
		return nil, invalidParams("missing line")
	}
	head := p.Head
	if head <= 0 {
		head = 200
	}

	relPath := index.RelativePath(p.Path, p.WorkspaceRoot)
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")

	var start, end int
	if p.RangeStartLine > 0 && p.RangeEndLine > 0 {
		start = p.RangeStartLine - 1
		end = p.RangeEndLine - 1
		if start == end && (p.Kind == "Constant" || p.Kind == "Variable") {
			end = expandValueRange(lines, start)
		}
	} else {
		start, end = s.symbolRangeAt(ctx, &p, len(lines))
	}

	if p.Context > 0 {
		start -= p.Context
		if start < 0 {
			start = 0
		}
		end += p.Context
		if end > len(lines)-1 {
			end = len(lines) - 1
		}
	}

	totalLines := end - start + 1
	truncated := totalLines > head
	if truncated {
		end = start + head - 1
	}
	if end > len(lines)-1 {
		end = len(lines) - 1
	}
	if start > end {
		start = end
	}

	return map[string]any{
		"path":        relPath,
		"start_line":  start + 1,
		"end_line":    end + 1,
		"content":     strings.Join(lines[start:end+1], "\n"),
		"truncated":   truncated,
		"total_lines": totalLines,
		"symbol":      p.Symbol,
	}, nil
}

// symbolRangeAt asks the server for the symbol range containing the line,
// falling back to the line itself.
func (s *Server) symbolRangeAt(ctx context.Context, p *showParams, lineCount int) (int, int) {
	target := p.Line - 1
	if target > lineCount-1 {
		target = lineCount - 1
	}

	if _, err := s.session.WorkspaceForFile(ctx, p.Path, p.WorkspaceRoot); err != nil {
		return target, target
	}
	client := s.session.ClientForFile(p.Path, p.WorkspaceRoot)
	if client == nil {
		return target, target
	}

	var resp lsp.DocumentSymbolResponse
	err := client.Call(ctx, "textDocument/documentSymbol", lsp.DocumentSymbolParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: lsp.FilePathToURI(p.Path)},
	}, &resp)
	if err != nil {
		return target, target
	}

	if start, end, ok := findSymbolRange(&resp, target); ok {
		return start, end
	}
	return target, target
}

// findSymbolRange locates the symbol for the 0-based target line. For a
// nested response it is the innermost symbol whose range contains the line;
// for a flat response only a symbol whose range starts on the line matches.
func findSymbolRange(resp *lsp.DocumentSymbolResponse, target int) (int, int, bool) {
	if resp.Nested != nil {
		return findNestedRange(resp.Nested, target)
	}
	for _, sym := range resp.Flat {
		if sym.Location.Range.Start.Line == target {
			return target, sym.Location.Range.End.Line, true
		}
	}
	return 0, 0, false
}

func findNestedRange(symbols []lsp.DocumentSymbol, target int) (int, int, bool) {
	for _, sym := range symbols {
		start := sym.Range.Start.Line
		end := sym.Range.End.Line
		if start <= target && target <= end {
			if len(sym.Children) > 0 {
				if cs, ce, ok := findNestedRange(sym.Children, target); ok {
					return cs, ce, true
				}
			}
			return start, end, true
		}
	}
	return 0, 0, false
}

// expandValueRange grows a single-line range downward while brackets remain
// unbalanced or a triple-quoted string is open, so multi-line constant
// initializers display fully.
func expandValueRange(lines []string, startLine int) int {
	if startLine >= len(lines) {
		return startLine
	}
	first := lines[startLine]

	parens := strings.Count(first, "(") - strings.Count(first, ")")
	brackets := strings.Count(first, "[") - strings.Count(first, "]")
	braces := strings.Count(first, "{") - strings.Count(first, "}")
	inString := strings.Count(first, `"""`)%2 == 1 || strings.Count(first, "'''")%2 == 1

	if parens == 0 && brackets == 0 && braces == 0 && !inString {
		return startLine
	}

	for i := startLine + 1; i < len(lines); i++ {
		line := lines[i]
		if inString {
			if strings.Contains(line, `"""`) || strings.Contains(line, "'''") {
				inString = false
				if parens == 0 && brackets == 0 && braces == 0 {
					return i
				}
			}
			continue
		}

		parens += strings.Count(line, "(") - strings.Count(line, ")")
		brackets += strings.Count(line, "[") - strings.Count(line, "]")
		braces += strings.Count(line, "{") - strings.Count(line, "}")

		if strings.Count(line, `"""`)%2 == 1 || strings.Count(line, "'''")%2 == 1 {
			inString = true
			continue
		}
		if parens <= 0 && brackets <= 0 && braces <= 0 {
			return i
		}
	}
	return startLine
}
