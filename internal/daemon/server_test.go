package daemon

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/dshills/lantern/internal/cache"
	"github.com/dshills/lantern/internal/config"
	"github.com/dshills/lantern/internal/workspace"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	log := zap.NewNop()

	hover, err := cache.Open(filepath.Join(dir, "hover.db"), 1<<20, log)
	if err != nil {
		t.Fatal(err)
	}
	symbols, err := cache.Open(filepath.Join(dir, "symbols.db"), 1<<20, log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		hover.Close()
		symbols.Close()
	})

	session := workspace.NewSession(config.Default(), log)
	return NewServer(session, hover, symbols, log)
}

func TestDispatch_UnknownMethod(t *testing.T) {
	s := testServer(t)
	resp := s.dispatch(context.Background(), "bogus", nil, nil)

	errMsg, ok := resp["error"].(string)
	if !ok || errMsg != "Unknown method: bogus" {
		t.Errorf("got %v", resp)
	}
}

func TestDispatch_InvalidParams(t *testing.T) {
	s := testServer(t)
	resp := s.dispatch(context.Background(), "rename", json.RawMessage(`{"line": "not a number"}`), nil)

	errMsg, ok := resp["error"].(string)
	if !ok || !strings.HasPrefix(errMsg, "Invalid params:") {
		t.Errorf("got %v", resp)
	}
}

func TestDispatch_MissingRequiredParam(t *testing.T) {
	s := testServer(t)
	resp := s.dispatch(context.Background(), "rename", json.RawMessage(`{"path": "/f.rs"}`), nil)

	errMsg, ok := resp["error"].(string)
	if !ok || !strings.Contains(errMsg, "workspace_root") {
		t.Errorf("got %v", resp)
	}
}

func TestDispatch_DescribeSession(t *testing.T) {
	s := testServer(t)
	resp := s.dispatch(context.Background(), "describe-session", nil, nil)

	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("got %v", resp)
	}
	if result["daemon_pid"] != os.Getpid() {
		t.Errorf("daemon_pid = %v", result["daemon_pid"])
	}
	caches, ok := result["caches"].(map[string]cache.Stats)
	if !ok {
		t.Fatalf("caches = %T", result["caches"])
	}
	if caches["symbol_cache"].MaxBytes != 1<<20 {
		t.Errorf("symbol cache stats = %+v", caches["symbol_cache"])
	}
}

func TestDispatch_ProfilingAttached(t *testing.T) {
	s := testServer(t)
	prof := NewProfiler()
	resp := s.dispatch(context.Background(), "describe-session", nil, prof)
	if _, hasResult := resp["result"]; !hasResult {
		t.Fatalf("got %v", resp)
	}

	report := prof.Report()
	if report["total_ms"] == nil {
		t.Error("profiler should record total time")
	}
}

func TestHandleFiles(t *testing.T) {
	s := testServer(t)
	root := t.TempDir()

	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("src/main.py", "print('hi')\nprint('bye')\n")
	write("node_modules/dep.js", "ignored")
	write("gen/out.py", "ignored by pattern")

	result, err := s.handleFiles(context.Background(), filesParams{
		WorkspaceRoot:   root,
		ExcludePatterns: []string{"gen"},
	})
	if err != nil {
		t.Fatalf("handleFiles: %v", err)
	}

	m := result.(map[string]any)
	files := m["files"].(map[string]fileEntry)
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}
	entry, ok := files[filepath.Join("src", "main.py")]
	if !ok {
		t.Fatalf("missing src/main.py in %v", files)
	}
	if entry.Lines != 2 {
		t.Errorf("lines = %d", entry.Lines)
	}
	if m["total_files"] != 1 {
		t.Errorf("total_files = %v", m["total_files"])
	}
}

func TestHandleShow_ExplicitRange(t *testing.T) {
	s := testServer(t)
	root := t.TempDir()
	path := filepath.Join(root, "f.py")
	content := "line1\nline2\nline3\nline4\nline5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := s.handleShow(context.Background(), showParams{
		WorkspaceRoot:  root,
		Path:           path,
		Line:           2,
		RangeStartLine: 2,
		RangeEndLine:   4,
	})
	if err != nil {
		t.Fatalf("handleShow: %v", err)
	}
	m := result.(map[string]any)
	if m["start_line"] != 2 || m["end_line"] != 4 {
		t.Errorf("range = %v..%v", m["start_line"], m["end_line"])
	}
	if m["content"] != "line2\nline3\nline4" {
		t.Errorf("content = %q", m["content"])
	}
	if m["truncated"] != false {
		t.Errorf("truncated = %v", m["truncated"])
	}
}

func TestHandleShow_HeadTruncation(t *testing.T) {
	s := testServer(t)
	root := t.TempDir()
	path := filepath.Join(root, "f.py")
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("line\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := s.handleShow(context.Background(), showParams{
		WorkspaceRoot:  root,
		Path:           path,
		Line:           1,
		Head:           10,
		RangeStartLine: 1,
		RangeEndLine:   50,
	})
	if err != nil {
		t.Fatalf("handleShow: %v", err)
	}
	m := result.(map[string]any)
	if m["truncated"] != true {
		t.Errorf("truncated = %v", m["truncated"])
	}
	if m["total_lines"] != 50 {
		t.Errorf("total_lines = %v", m["total_lines"])
	}
	if m["end_line"] != 10 {
		t.Errorf("end_line = %v", m["end_line"])
	}
}

func TestHandleShow_ExpandsConstantRange(t *testing.T) {
	s := testServer(t)
	root := t.TempDir()
	path := filepath.Join(root, "f.py")
	content := "CONFIG = {\n    'a': 1,\n    'b': 2,\n}\nnext_thing = 1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := s.handleShow(context.Background(), showParams{
		WorkspaceRoot:  root,
		Path:           path,
		Line:           1,
		Kind:           "Constant",
		RangeStartLine: 1,
		RangeEndLine:   1,
	})
	if err != nil {
		t.Fatalf("handleShow: %v", err)
	}
	m := result.(map[string]any)
	if m["end_line"] != 4 {
		t.Errorf("end_line = %v, want brace-balanced 4", m["end_line"])
	}
}

func TestHandleGrep_RequiresWorkspaceRoot(t *testing.T) {
	s := testServer(t)
	_, err := s.handleGrep(context.Background(), grepParams{})
	if err == nil || !strings.Contains(err.Error(), "workspace_root") {
		t.Errorf("got %v", err)
	}
}

func TestHandleCalls_UnknownMode(t *testing.T) {
	s := testServer(t)
	_, err := s.handleCalls(context.Background(), callsParams{WorkspaceRoot: "/ws", Mode: "sideways"})
	if err == nil || !strings.Contains(err.Error(), "sideways") {
		t.Errorf("got %v", err)
	}
}
