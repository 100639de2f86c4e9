// Package index walks workspaces and produces flat symbol records via each
// language server's documentSymbol, backed by a content-addressed cache so
// repeated queries over unchanged files never touch the server.
package index

import "github.com/dshills/lantern/internal/lsp"

// Symbol is the flat, language-neutral description of one named definition.
// Names are kept exactly as the server produced them (possibly decorated,
// e.g. Go's "(*T).M" or Rust's parameter lists); normalization happens at
// resolve time. Lines are 1-based, columns 0-based.
type Symbol struct {
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Path           string `json:"path"`
	Line           int    `json:"line"`
	Column         int    `json:"column"`
	Container      string `json:"container,omitempty"`
	Detail         string `json:"detail,omitempty"`
	Documentation  string `json:"documentation,omitempty"`
	RangeStartLine int    `json:"range_start_line,omitempty"`
	RangeEndLine   int    `json:"range_end_line,omitempty"`
	Ref            string `json:"ref,omitempty"`
}

// Flatten converts a documentSymbol response into flat records. Hierarchical
// responses emit one record per symbol in depth-first order with the parent
// name as the child's container; flat responses map one-for-one with their
// own container field.
func Flatten(resp *lsp.DocumentSymbolResponse, filePath string) []Symbol {
	var out []Symbol

	if resp.Nested != nil {
		flattenNested(resp.Nested, filePath, "", &out)
		return out
	}

	for _, sym := range resp.Flat {
		out = append(out, Symbol{
			Name:           sym.Name,
			Kind:           sym.Kind.String(),
			Path:           filePath,
			Line:           sym.Location.Range.Start.Line + 1,
			Column:         sym.Location.Range.Start.Character,
			Container:      sym.ContainerName,
			RangeStartLine: sym.Location.Range.Start.Line + 1,
			RangeEndLine:   sym.Location.Range.End.Line + 1,
		})
	}
	return out
}

func flattenNested(symbols []lsp.DocumentSymbol, filePath, container string, out *[]Symbol) {
	for _, sym := range symbols {
		*out = append(*out, Symbol{
			Name:           sym.Name,
			Kind:           sym.Kind.String(),
			Path:           filePath,
			Line:           sym.SelectionRange.Start.Line + 1,
			Column:         sym.SelectionRange.Start.Character,
			Container:      container,
			Detail:         sym.Detail,
			RangeStartLine: sym.Range.Start.Line + 1,
			RangeEndLine:   sym.Range.End.Line + 1,
		})
		if len(sym.Children) > 0 {
			flattenNested(sym.Children, filePath, sym.Name, out)
		}
	}
}
