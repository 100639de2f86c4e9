package hierarchy

import (
	"context"
	"testing"

	"github.com/dshills/lantern/internal/lsp"
)

// fakeGraph implements Caller over a static call graph keyed by item name.
type fakeGraph struct {
	outgoing map[string][]lsp.CallHierarchyItem
	incoming map[string][]lsp.CallHierarchyItem
	calls    int
}

func item(name, uri string, line int) lsp.CallHierarchyItem {
	return lsp.CallHierarchyItem{
		Name: name,
		Kind: lsp.SymbolKindFunction,
		URI:  lsp.DocumentURI("file://" + uri),
		Range: lsp.Range{
			Start: lsp.Position{Line: line - 1},
			End:   lsp.Position{Line: line + 5},
		},
		SelectionRange: lsp.Range{
			Start: lsp.Position{Line: line - 1, Character: 3},
		},
	}
}

func (g *fakeGraph) PrepareCallHierarchy(_ context.Context, path string, line, column int) ([]lsp.CallHierarchyItem, error) {
	return nil, nil
}

func (g *fakeGraph) OutgoingCalls(_ context.Context, it lsp.CallHierarchyItem) ([]lsp.CallHierarchyOutgoingCall, error) {
	g.calls++
	var out []lsp.CallHierarchyOutgoingCall
	for _, to := range g.outgoing[it.Name] {
		out = append(out, lsp.CallHierarchyOutgoingCall{To: to})
	}
	return out, nil
}

func (g *fakeGraph) IncomingCalls(_ context.Context, it lsp.CallHierarchyItem) ([]lsp.CallHierarchyIncomingCall, error) {
	g.calls++
	var out []lsp.CallHierarchyIncomingCall
	for _, from := range g.incoming[it.Name] {
		out = append(out, lsp.CallHierarchyIncomingCall{From: from})
	}
	return out, nil
}

func TestTraverser_OutgoingTree(t *testing.T) {
	main := item("main", "/ws/main.go", 5)
	helper := item("helper", "/ws/util.go", 10)
	leaf := item("leaf", "/ws/util.go", 30)

	g := &fakeGraph{outgoing: map[string][]lsp.CallHierarchyItem{
		"main":   {helper},
		"helper": {leaf},
	}}

	tr := &Traverser{Caller: g, WorkspaceRoot: "/ws", MaxDepth: 3}
	calls := tr.Outgoing(context.Background(), &main, 0)

	if len(calls) != 1 || calls[0].Name != "helper" {
		t.Fatalf("got %+v", calls)
	}
	if len(calls[0].Calls) != 1 || calls[0].Calls[0].Name != "leaf" {
		t.Errorf("nested call missing: %+v", calls[0])
	}
	if calls[0].Line != 10 || calls[0].Path != "util.go" {
		t.Errorf("node rendering wrong: %+v", calls[0])
	}
}

func TestTraverser_CycleTerminates(t *testing.T) {
	a := item("a", "/ws/a.go", 1)
	b := item("b", "/ws/b.go", 1)

	g := &fakeGraph{outgoing: map[string][]lsp.CallHierarchyItem{
		"a": {b},
		"b": {a},
	}}

	tr := &Traverser{Caller: g, WorkspaceRoot: "/ws", MaxDepth: 50}
	calls := tr.Outgoing(context.Background(), &a, 0)

	if len(calls) != 1 || calls[0].Name != "b" {
		t.Fatalf("got %+v", calls)
	}
	// The cycle back to a is cut: a reappears as a leaf with no children.
	if len(calls[0].Calls) != 1 || calls[0].Calls[0].Name != "a" {
		t.Fatalf("got %+v", calls[0].Calls)
	}
	if len(calls[0].Calls[0].Calls) != 0 {
		t.Errorf("cycle not cut: %+v", calls[0].Calls[0].Calls)
	}
	if g.calls > 3 {
		t.Errorf("traversal did not terminate promptly: %d calls", g.calls)
	}
}

func TestTraverser_DepthBound(t *testing.T) {
	chain := map[string][]lsp.CallHierarchyItem{}
	names := []string{"f0", "f1", "f2", "f3", "f4"}
	for i := 0; i < len(names)-1; i++ {
		chain[names[i]] = []lsp.CallHierarchyItem{item(names[i+1], "/ws/f.go", (i+2)*10)}
	}
	g := &fakeGraph{outgoing: chain}

	root := item("f0", "/ws/f.go", 10)
	tr := &Traverser{Caller: g, WorkspaceRoot: "/ws", MaxDepth: 2}
	calls := tr.Outgoing(context.Background(), &root, 0)

	depth := 0
	for node := calls; len(node) > 0; node = node[0].Calls {
		depth++
	}
	if depth != 2 {
		t.Errorf("tree depth = %d, want 2", depth)
	}
}

func TestTraverser_FiltersNonWorkspace(t *testing.T) {
	main := item("main", "/ws/main.go", 5)
	inside := item("inside", "/ws/a.go", 1)
	stdlib := item("HashMap::new", "/usr/lib/rust/map.rs", 100)
	vendored := item("dep", "/ws/vendor/lib.go", 1)

	g := &fakeGraph{outgoing: map[string][]lsp.CallHierarchyItem{
		"main": {inside, stdlib, vendored},
	}}

	tr := &Traverser{Caller: g, WorkspaceRoot: "/ws", MaxDepth: 2}
	calls := tr.Outgoing(context.Background(), &main, 0)
	if len(calls) != 1 || calls[0].Name != "inside" {
		t.Errorf("external callees should be filtered: %+v", calls)
	}

	g2 := &fakeGraph{outgoing: g.outgoing}
	tr2 := &Traverser{Caller: g2, WorkspaceRoot: "/ws", MaxDepth: 2, IncludeNonWorkspace: true}
	calls = tr2.Outgoing(context.Background(), &main, 0)
	if len(calls) != 3 {
		t.Errorf("include_non_workspace should keep all callees: %+v", calls)
	}
}

func TestTraverser_IncomingTree(t *testing.T) {
	save := item("save", "/ws/store.go", 20)
	caller := item("addUser", "/ws/repo.go", 8)

	g := &fakeGraph{incoming: map[string][]lsp.CallHierarchyItem{
		"save": {caller},
	}}

	tr := &Traverser{Caller: g, WorkspaceRoot: "/ws", MaxDepth: 3}
	callers := tr.Incoming(context.Background(), &save, 0)
	if len(callers) != 1 || callers[0].Name != "addUser" {
		t.Fatalf("got %+v", callers)
	}
}

func TestTraverser_FindPath(t *testing.T) {
	main := item("main", "/ws/main.go", 5)
	addUser := item("add_user", "/ws/repo.go", 12)
	save := item("save", "/ws/store.go", 20)
	other := item("display", "/ws/user.go", 9)

	g := &fakeGraph{outgoing: map[string][]lsp.CallHierarchyItem{
		"main":     {other, addUser},
		"add_user": {save},
	}}

	tr := &Traverser{Caller: g, WorkspaceRoot: "/ws", MaxDepth: 4}
	path := tr.FindPath(context.Background(), &main, &save)

	want := []string{"main", "add_user", "save"}
	if len(path) != len(want) {
		t.Fatalf("path = %+v", path)
	}
	for i, name := range want {
		if path[i].Name != name {
			t.Errorf("path[%d] = %q, want %q", i, path[i].Name, name)
		}
	}
}

func TestTraverser_FindPathCycleNoTarget(t *testing.T) {
	a := item("a", "/ws/a.go", 1)
	b := item("b", "/ws/b.go", 1)
	missing := item("missing", "/ws/m.go", 1)

	g := &fakeGraph{outgoing: map[string][]lsp.CallHierarchyItem{
		"a": {b},
		"b": {a},
	}}

	tr := &Traverser{Caller: g, WorkspaceRoot: "/ws", MaxDepth: 10}
	if path := tr.FindPath(context.Background(), &a, &missing); path != nil {
		t.Errorf("expected no path, got %+v", path)
	}
}

func TestTraverser_FindPathSameNode(t *testing.T) {
	a := item("a", "/ws/a.go", 1)
	g := &fakeGraph{}
	tr := &Traverser{Caller: g, WorkspaceRoot: "/ws", MaxDepth: 3}
	path := tr.FindPath(context.Background(), &a, &a)
	if len(path) != 1 || path[0].Name != "a" {
		t.Errorf("self path = %+v", path)
	}
}
