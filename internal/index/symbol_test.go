package index

import (
	"encoding/json"
	"testing"

	"github.com/dshills/lantern/internal/lsp"
)

func TestFlatten_NestedDepthFirstWithContainers(t *testing.T) {
	data := `[{
		"name": "Storage",
		"kind": 11,
		"detail": "trait",
		"range": {"start": {"line": 3, "character": 0}, "end": {"line": 8, "character": 1}},
		"selectionRange": {"start": {"line": 3, "character": 10}, "end": {"line": 3, "character": 17}},
		"children": [
			{
				"name": "save",
				"kind": 6,
				"range": {"start": {"line": 4, "character": 4}, "end": {"line": 4, "character": 40}},
				"selectionRange": {"start": {"line": 4, "character": 7}, "end": {"line": 4, "character": 11}},
				"children": [{
					"name": "tmp",
					"kind": 13,
					"range": {"start": {"line": 5, "character": 8}, "end": {"line": 5, "character": 20}},
					"selectionRange": {"start": {"line": 5, "character": 12}, "end": {"line": 5, "character": 15}}
				}]
			},
			{
				"name": "load",
				"kind": 6,
				"range": {"start": {"line": 6, "character": 4}, "end": {"line": 6, "character": 40}},
				"selectionRange": {"start": {"line": 6, "character": 7}, "end": {"line": 6, "character": 11}}
			}
		]
	}]`

	var resp lsp.DocumentSymbolResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		t.Fatal(err)
	}

	symbols := Flatten(&resp, "src/storage.rs")

	wantOrder := []string{"Storage", "save", "tmp", "load"}
	if len(symbols) != len(wantOrder) {
		t.Fatalf("got %d symbols", len(symbols))
	}
	for i, name := range wantOrder {
		if symbols[i].Name != name {
			t.Errorf("symbols[%d] = %q, want %q (depth-first order)", i, symbols[i].Name, name)
		}
	}

	if symbols[0].Container != "" {
		t.Errorf("root container = %q", symbols[0].Container)
	}
	if symbols[1].Container != "Storage" {
		t.Errorf("save container = %q", symbols[1].Container)
	}
	if symbols[2].Container != "save" {
		t.Errorf("tmp container = %q", symbols[2].Container)
	}

	// 1-based lines from selectionRange, 0-based columns; full range spans.
	if symbols[0].Line != 4 || symbols[0].Column != 10 {
		t.Errorf("Storage at %d:%d", symbols[0].Line, symbols[0].Column)
	}
	if symbols[0].RangeStartLine != 4 || symbols[0].RangeEndLine != 9 {
		t.Errorf("Storage range %d..%d", symbols[0].RangeStartLine, symbols[0].RangeEndLine)
	}
	if symbols[0].Detail != "trait" {
		t.Errorf("detail = %q", symbols[0].Detail)
	}
}

func TestFlatten_FlatKeepsContainerField(t *testing.T) {
	resp := &lsp.DocumentSymbolResponse{
		Flat: []lsp.SymbolInformation{{
			Name: "save",
			Kind: lsp.SymbolKindMethod,
			Location: lsp.Location{
				URI: "file:///ws/s.rb",
				Range: lsp.Range{
					Start: lsp.Position{Line: 9, Character: 2},
					End:   lsp.Position{Line: 12, Character: 5},
				},
			},
			ContainerName: "Store",
		}},
	}

	symbols := Flatten(resp, "s.rb")
	if len(symbols) != 1 {
		t.Fatalf("got %d", len(symbols))
	}
	s := symbols[0]
	if s.Line != 10 || s.Column != 2 || s.Container != "Store" || s.Kind != "Method" {
		t.Errorf("got %+v", s)
	}
}

func TestFlatten_EmptyResponse(t *testing.T) {
	symbols := Flatten(&lsp.DocumentSymbolResponse{}, "empty.py")
	if len(symbols) != 0 {
		t.Errorf("zero-symbol file should flatten to empty, got %v", symbols)
	}
}
