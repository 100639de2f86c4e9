package lsp

import (
	"encoding/json"
	"testing"
)

func TestDocumentSymbolResponse_Nested(t *testing.T) {
	data := `[{
		"name": "Storage",
		"kind": 11,
		"range": {"start": {"line": 3, "character": 0}, "end": {"line": 8, "character": 1}},
		"selectionRange": {"start": {"line": 3, "character": 10}, "end": {"line": 3, "character": 17}},
		"children": [{
			"name": "save",
			"kind": 6,
			"range": {"start": {"line": 4, "character": 4}, "end": {"line": 4, "character": 40}},
			"selectionRange": {"start": {"line": 4, "character": 7}, "end": {"line": 4, "character": 11}}
		}]
	}]`

	var resp DocumentSymbolResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Nested) != 1 || resp.Flat != nil {
		t.Fatalf("expected nested shape, got nested=%d flat=%d", len(resp.Nested), len(resp.Flat))
	}
	if resp.Nested[0].Name != "Storage" || len(resp.Nested[0].Children) != 1 {
		t.Errorf("bad nested decode: %+v", resp.Nested[0])
	}
}

func TestDocumentSymbolResponse_Flat(t *testing.T) {
	data := `[{
		"name": "save",
		"kind": 6,
		"location": {
			"uri": "file:///ws/src/storage.rs",
			"range": {"start": {"line": 4, "character": 7}, "end": {"line": 4, "character": 11}}
		},
		"containerName": "Storage"
	}]`

	var resp DocumentSymbolResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Flat) != 1 || resp.Nested != nil {
		t.Fatalf("expected flat shape, got nested=%d flat=%d", len(resp.Nested), len(resp.Flat))
	}
	if resp.Flat[0].ContainerName != "Storage" {
		t.Errorf("container = %q", resp.Flat[0].ContainerName)
	}
}

func TestDocumentSymbolResponse_NullAndEmpty(t *testing.T) {
	for _, data := range []string{"null", "[]"} {
		var resp DocumentSymbolResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		if resp.Nested != nil || resp.Flat != nil {
			t.Errorf("%q should decode to empty response", data)
		}
	}
}

func TestDocumentChange_Variants(t *testing.T) {
	tests := []struct {
		name string
		data string
		want func(*DocumentChange) bool
	}{
		{
			name: "edit",
			data: `{"textDocument": {"uri": "file:///a.rs", "version": 2}, "edits": []}`,
			want: func(c *DocumentChange) bool { return c.TextDocumentEdit != nil },
		},
		{
			name: "create",
			data: `{"kind": "create", "uri": "file:///new.rs"}`,
			want: func(c *DocumentChange) bool { return c.CreateFile != nil },
		},
		{
			name: "rename",
			data: `{"kind": "rename", "oldUri": "file:///a.rs", "newUri": "file:///b.rs"}`,
			want: func(c *DocumentChange) bool { return c.RenameFile != nil },
		},
		{
			name: "delete",
			data: `{"kind": "delete", "uri": "file:///a.rs"}`,
			want: func(c *DocumentChange) bool { return c.DeleteFile != nil },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c DocumentChange
			if err := json.Unmarshal([]byte(tt.data), &c); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !tt.want(&c) {
				t.Errorf("wrong variant decoded: %+v", c)
			}
		})
	}
}

func TestParseLocations(t *testing.T) {
	rangeJSON := `{"start": {"line": 1, "character": 2}, "end": {"line": 1, "character": 5}}`

	tests := []struct {
		name  string
		data  string
		count int
	}{
		{"null", `null`, 0},
		{"single", `{"uri": "file:///a.rs", "range": ` + rangeJSON + `}`, 1},
		{"array", `[{"uri": "file:///a.rs", "range": ` + rangeJSON + `}, {"uri": "file:///b.rs", "range": ` + rangeJSON + `}]`, 2},
		{"links", `[{"targetUri": "file:///a.rs", "targetRange": ` + rangeJSON + `, "targetSelectionRange": ` + rangeJSON + `}]`, 1},
		{"empty", `[]`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locs := ParseLocations(json.RawMessage(tt.data))
			if len(locs) != tt.count {
				t.Errorf("got %d locations, want %d", len(locs), tt.count)
			}
		})
	}
}

func TestHasCapability(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"", false},
		{"null", false},
		{"true", true},
		{"false", false},
		{"{}", true},
		{`{"workDoneProgress": true}`, true},
	}
	for _, tt := range tests {
		if got := HasCapability(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("HasCapability(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSupportsWillRenameFiles(t *testing.T) {
	var caps ServerCapabilities
	if caps.SupportsWillRenameFiles() {
		t.Error("empty capabilities must not advertise willRename")
	}

	data := `{"workspace": {"fileOperations": {"willRename": {"filters": []}}}}`
	if err := json.Unmarshal([]byte(data), &caps); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !caps.SupportsWillRenameFiles() {
		t.Error("willRename filters should advertise support")
	}
}
