package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/dshills/lantern/internal/transport"
)

// DefaultRequestTimeout bounds a single LSP request.
const DefaultRequestTimeout = 30 * time.Second

// rpcResult is what a pending-request slot receives: the raw result value or
// an error (server-reported or transport-level).
type rpcResult struct {
	value json.RawMessage
	err   error
}

// StartOptions configure a Client.
type StartOptions struct {
	// Command is the server argv; Command[0] is the executable.
	Command []string

	// WorkspaceRoot is the absolute workspace directory; it becomes the
	// child's cwd and the rootUri of the initialize request.
	WorkspaceRoot string

	// ServerName identifies the server for logging and quirk dispatch.
	ServerName string

	// Env is the full child environment (usually registry.ServerEnv()).
	Env []string

	// InitializationOptions are passed through in initialize.
	InitializationOptions any

	// RequestTimeout bounds each request; zero means DefaultRequestTimeout.
	RequestTimeout time.Duration

	// Logger must not be nil.
	Logger *zap.Logger
}

// Client owns one language-server child process and speaks framed JSON-RPC
// to it. All exported methods are safe for concurrent use: stdin writes are
// serialized by a mutex and responses are routed through single-use slots in
// a concurrent pending table.
type Client struct {
	cmd        *exec.Cmd
	serverName string
	rootURI    DocumentURI
	timeout    time.Duration
	log        *zap.Logger

	stdinMu sync.Mutex
	stdin   io.WriteCloser

	nextID  atomic.Int64
	pending sync.Map // int64 -> chan rpcResult

	capsMu sync.RWMutex
	caps   ServerCapabilities

	initialized  atomic.Bool
	serviceReady atomic.Bool
	indexingDone atomic.Bool

	progressMu sync.Mutex
	progress   map[string]struct{}

	// done is closed when the stdout reader exits; from then on the
	// transport is unusable. exited is closed once the process is reaped.
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

// Start spawns the server process, begins the reader tasks, and performs the
// initialize/initialized handshake. On handshake failure the process is
// killed before returning.
func Start(ctx context.Context, opts StartOptions) (*Client, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("empty server command")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.WorkspaceRoot
	cmd.Env = opts.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", opts.Command[0], err)
	}

	c := &Client{
		cmd:        cmd,
		serverName: opts.ServerName,
		rootURI:    FilePathToURI(opts.WorkspaceRoot),
		timeout:    opts.RequestTimeout,
		log:        opts.Logger.Named("lsp").With(zap.String("server", opts.ServerName)),
		stdin:      stdin,
		progress:   make(map[string]struct{}),
		done:       make(chan struct{}),
		exited:     make(chan struct{}),
	}

	// jdtls announces readiness via language/status; everyone else is
	// considered service-ready from the start. rust-analyzer reports
	// quiescence via experimental/serverStatus, so it starts not-indexed.
	c.serviceReady.Store(opts.ServerName != "jdtls")
	c.indexingDone.Store(opts.ServerName != "rust-analyzer")

	go c.readLoop(stdout)
	go c.drainStderr(stderr)
	go func() {
		_ = cmd.Wait()
		close(c.exited)
	}()

	if err := c.initialize(ctx, opts); err != nil {
		c.killProcess()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return c, nil
}

func (c *Client) initialize(ctx context.Context, opts StartOptions) error {
	params := InitializeParams{
		ProcessID:             os.Getpid(),
		RootURI:               c.rootURI,
		RootPath:              opts.WorkspaceRoot,
		Capabilities:          ClientCapabilities(),
		InitializationOptions: opts.InitializationOptions,
		WorkspaceFolders: []WorkspaceFolder{{
			URI:  c.rootURI,
			Name: workspaceName(opts.WorkspaceRoot),
		}},
	}

	var result InitializeResult
	if err := c.Call(ctx, "initialize", params, &result); err != nil {
		return err
	}

	c.capsMu.Lock()
	c.caps = result.Capabilities
	c.capsMu.Unlock()

	if err := c.Notify(ctx, "initialized", struct{}{}); err != nil {
		return err
	}
	c.initialized.Store(true)
	return nil
}

func workspaceName(root string) string {
	name := filepath.Base(root)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "workspace"
	}
	return name
}

// Call sends a request and decodes the result into out (which may be nil to
// discard it).
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	raw, err := c.CallRaw(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// CallRaw sends a request and returns the raw result value. The request
// times out after the client's configured timeout; on timeout the pending
// slot is removed and ErrTimeout is returned.
func (c *Client) CallRaw(ctx context.Context, method string, params any) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, ErrConnectionClosed
	default:
	}

	id := c.nextID.Add(1)
	ch := make(chan rpcResult, 1)
	c.pending.Store(id, ch)
	defer c.pending.Delete(id)

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}
	c.log.Debug("request", zap.Int64("id", id), zap.String("method", method))
	if err := c.write(msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.value, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, method, c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a notification; no response slot is installed.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
	c.log.Debug("notification", zap.String("method", method))
	return c.write(msg)
}

// write frames and writes a message under the stdin lock.
func (c *Client) write(msg any) error {
	data, err := transport.Encode(msg)
	if err != nil {
		return err
	}
	c.stdinMu.Lock()
	defer c.stdinMu.Unlock()
	if _, err := c.stdin.Write(data); err != nil {
		return fmt.Errorf("write to %s: %w", c.serverName, err)
	}
	return nil
}

// readLoop decodes stdout messages and fans them into response,
// server-request, and notification paths. On exit it drains the pending
// table so every awaiter unblocks with ErrConnectionClosed.
func (c *Client) readLoop(stdout io.Reader) {
	r := transport.NewReader(stdout)
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			if err != transport.ErrConnectionClosed {
				c.log.Error("read error", zap.Error(err))
			}
			break
		}
		c.handleMessage(msg)
	}

	c.closeOnce.Do(func() { close(c.done) })
	c.pending.Range(func(key, value any) bool {
		c.pending.Delete(key)
		ch := value.(chan rpcResult)
		select {
		case ch <- rpcResult{err: ErrConnectionClosed}:
		default:
		}
		return true
	})
}

func (c *Client) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		c.log.Debug("stderr", zap.String("line", scanner.Text()))
	}
}

// handleMessage classifies an inbound message: a response carries id without
// method, a server-initiated request carries both, anything else is a
// notification.
func (c *Client) handleMessage(msg json.RawMessage) {
	id := gjson.GetBytes(msg, "id")
	method := gjson.GetBytes(msg, "method")

	switch {
	case id.Exists() && !method.Exists():
		c.handleResponse(id.Int(), msg)
	case id.Exists():
		c.handleServerRequest(method.String(), msg)
	default:
		c.handleNotification(method.String(), msg)
	}
}

func (c *Client) handleResponse(id int64, msg json.RawMessage) {
	value, ok := c.pending.LoadAndDelete(id)
	if !ok {
		c.log.Warn("orphan response", zap.Int64("id", id))
		return
	}
	ch := value.(chan rpcResult)

	if errVal := gjson.GetBytes(msg, "error"); errVal.Exists() {
		re := &ResponseError{
			Code:    int(errVal.Get("code").Int()),
			Message: errVal.Get("message").String(),
		}
		if data := errVal.Get("data"); data.Exists() {
			re.Data = data.Value()
		}
		c.log.Debug("response error", zap.Int64("id", id), zap.String("message", re.Message))
		ch <- rpcResult{err: re}
		return
	}

	result := gjson.GetBytes(msg, "result")
	ch <- rpcResult{value: json.RawMessage(result.Raw)}
}

// handleServerRequest answers requests the server sends us. Configuration
// queries get one empty object per requested item; progress creation,
// capability registration, and edit application get minimal success acks;
// everything else is refused with method-not-found.
func (c *Client) handleServerRequest(method string, msg json.RawMessage) {
	id := json.RawMessage(gjson.GetBytes(msg, "id").Raw)

	var result any
	var respErr *ResponseError

	switch method {
	case "workspace/configuration":
		n := len(gjson.GetBytes(msg, "params.items").Array())
		items := make([]any, n)
		for i := range items {
			items[i] = struct{}{}
		}
		result = items
	case "window/workDoneProgress/create":
		result = nil
	case "client/registerCapability":
		result = nil
	case "workspace/applyEdit":
		result = map[string]any{"applied": true}
	default:
		respErr = &ResponseError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", method),
		}
	}

	reply := map[string]any{"jsonrpc": "2.0", "id": id}
	if respErr != nil {
		reply["error"] = respErr
	} else {
		reply["result"] = result
	}
	if err := c.write(reply); err != nil {
		c.log.Error("server request reply failed", zap.String("method", method), zap.Error(err))
	}
}

func (c *Client) handleNotification(method string, msg json.RawMessage) {
	switch method {
	case "$/progress":
		c.handleProgress(msg)
	case "language/status":
		// jdtls readiness signal.
		if gjson.GetBytes(msg, "params.type").String() == "ServiceReady" {
			c.log.Info("service ready")
			c.serviceReady.Store(true)
		}
	case "experimental/serverStatus":
		// rust-analyzer quiescence signal.
		params := gjson.GetBytes(msg, "params")
		quiescent := params.Get("quiescent").Bool()
		health := params.Get("health").String()
		if quiescent && health != "error" {
			c.indexingDone.Store(true)
		} else {
			c.indexingDone.Store(false)
		}
	}
}

func (c *Client) handleProgress(msg json.RawMessage) {
	token := gjson.GetBytes(msg, "params.token")
	kind := gjson.GetBytes(msg, "params.value.kind")
	if !token.Exists() || !kind.Exists() {
		return
	}
	key := token.String()

	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	switch kind.String() {
	case "begin":
		c.progress[key] = struct{}{}
		c.indexingDone.Store(false)
	case "end":
		delete(c.progress, key)
		if len(c.progress) == 0 {
			c.indexingDone.Store(true)
		}
	}
}

// WaitForIndexing polls until the server reports no active indexing work or
// the deadline passes. Best-effort: a false return means the caller should
// proceed anyway.
func (c *Client) WaitForIndexing(ctx context.Context, timeout time.Duration) bool {
	return c.waitFlag(ctx, timeout, &c.indexingDone, "indexing")
}

// WaitForServiceReady mirrors WaitForIndexing for the service-ready signal.
func (c *Client) WaitForServiceReady(ctx context.Context, timeout time.Duration) bool {
	return c.waitFlag(ctx, timeout, &c.serviceReady, "service ready")
}

func (c *Client) waitFlag(ctx context.Context, timeout time.Duration, flag *atomic.Bool, what string) bool {
	deadline := time.Now().Add(timeout)
	for {
		if flag.Load() {
			return true
		}
		if time.Now().After(deadline) {
			c.log.Warn("timeout waiting", zap.String("for", what))
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-c.done:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Shutdown performs the LSP shutdown/exit sequence and reaps the process.
// Safe to call on a client whose server already died.
func (c *Client) Shutdown(ctx context.Context) error {
	if c.initialized.Load() {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, _ = c.CallRaw(sctx, "shutdown", nil)
		cancel()
		_ = c.Notify(ctx, "exit", nil)
	}
	c.killProcess()
	return nil
}

func (c *Client) killProcess() {
	c.stdinMu.Lock()
	_ = c.stdin.Close()
	c.stdinMu.Unlock()

	if c.cmd != nil && c.cmd.Process != nil {
		// Give the server a moment to honor the exit notification.
		select {
		case <-c.exited:
		case <-time.After(2 * time.Second):
			_ = c.cmd.Process.Kill()
		}
	}
}

// ServerName returns the registry name of the server.
func (c *Client) ServerName() string { return c.serverName }

// RootURI returns the workspace root as a URI.
func (c *Client) RootURI() DocumentURI { return c.rootURI }

// PID returns the child process id, or 0 when it is gone.
func (c *Client) PID() int {
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Capabilities returns the server capabilities from initialize.
func (c *Client) Capabilities() ServerCapabilities {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.caps
}

// SupportsCallHierarchy reports call-hierarchy support.
func (c *Client) SupportsCallHierarchy() bool {
	caps := c.Capabilities()
	return HasCapability(caps.CallHierarchyProvider)
}

// SupportsTypeHierarchy reports type-hierarchy support.
func (c *Client) SupportsTypeHierarchy() bool {
	caps := c.Capabilities()
	return HasCapability(caps.TypeHierarchyProvider)
}
