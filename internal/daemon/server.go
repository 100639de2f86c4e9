// Package daemon implements the Unix-socket RPC front of lantern: one
// request per connection, a JSON {method, params} envelope, and a typed
// handler per method.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dshills/lantern/internal/cache"
	"github.com/dshills/lantern/internal/config"
	"github.com/dshills/lantern/internal/edit"
	"github.com/dshills/lantern/internal/index"
	"github.com/dshills/lantern/internal/workspace"
)

// Server owns the listener, the session, and the caches.
type Server struct {
	session     *workspace.Session
	indexer     *index.Indexer
	refactor    *edit.Refactor
	hoverCache  *cache.Store
	symbolCache *cache.Store
	log         *zap.Logger

	shutdownCh chan struct{}
}

// NewServer wires a daemon server.
func NewServer(session *workspace.Session, hoverCache, symbolCache *cache.Store, log *zap.Logger) *Server {
	return &Server{
		session:     session,
		indexer:     index.NewIndexer(session, symbolCache, log),
		refactor:    &edit.Refactor{Session: session, Log: log.Named("refactor")},
		hoverCache:  hoverCache,
		symbolCache: symbolCache,
		log:         log.Named("daemon"),
		shutdownCh:  make(chan struct{}),
	}
}

// request is the one-per-connection client envelope.
type request struct {
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Profile bool            `json:"profile,omitempty"`
}

// Run binds the socket, writes the pidfile, and accepts connections until a
// shutdown request or SIGINT/SIGTERM arrives. On exit every workspace is
// stopped, caches are flushed, and the socket and pidfile are removed.
func (s *Server) Run(ctx context.Context) error {
	socketPath := config.SocketPath()
	pidPath := config.PIDPath()

	if err := os.MkdirAll(config.CacheDir(), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	// A previous daemon may have left a stale socket behind.
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("bind %s: %w", socketPath, err)
	}
	if err := config.WritePID(pidPath, os.Getpid()); err != nil {
		listener.Close()
		return fmt.Errorf("write pidfile: %w", err)
	}

	s.log.Info("daemon started", zap.String("socket", socketPath))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		select {
		case sig := <-signals:
			s.log.Info("signal received", zap.String("signal", sig.String()))
		case <-s.shutdownCh:
			s.log.Info("shutdown requested")
		case <-ctx.Done():
		}
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			break
		}
		go func() {
			if err := s.handleConn(ctx, conn); err != nil {
				s.log.Error("client error", zap.Error(err))
			}
		}()
	}

	s.shutdown(ctx, socketPath, pidPath)
	return nil
}

func (s *Server) shutdown(ctx context.Context, socketPath, pidPath string) {
	s.log.Info("shutting down")
	if err := s.session.CloseAll(ctx); err != nil {
		s.log.Warn("workspace shutdown", zap.Error(err))
	}
	s.hoverCache.Flush()
	s.symbolCache.Flush()
	_ = os.Remove(socketPath)
	config.RemovePID(pidPath)
}

// handleConn serves exactly one request: read to EOF, dispatch, write the
// response, close. Short-lived CLI clients get no head-of-line blocking
// from each other this way.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	data, err := io.ReadAll(conn)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return writeJSON(conn, map[string]any{"error": fmt.Sprintf("Invalid request: %v", err)})
	}

	var prof *Profiler
	if req.Profile {
		prof = NewProfiler()
	}

	response := s.dispatch(ctx, req.Method, req.Params, prof)
	if prof != nil {
		response["profiling"] = prof.Report()
	}
	return writeJSON(conn, response)
}

func writeJSON(conn net.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := conn.Write(data); err != nil {
		return err
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		return uc.CloseWrite()
	}
	return nil
}

// dispatch routes a method to its handler and wraps the outcome in the
// result/error envelope.
func (s *Server) dispatch(ctx context.Context, method string, params json.RawMessage, prof *Profiler) map[string]any {
	done := prof.Section(method)
	defer done()

	var (
		result any
		err    error
	)

	switch method {
	case "shutdown":
		select {
		case <-s.shutdownCh:
		default:
			close(s.shutdownCh)
		}
		result = map[string]any{"status": "shutting_down"}
	case "describe-session":
		result, err = s.handleDescribeSession(ctx)
	case "grep":
		result, err = dispatchTyped(ctx, s.handleGrep, params)
	case "files":
		result, err = dispatchTyped(ctx, s.handleFiles, params)
	case "show":
		result, err = dispatchTyped(ctx, s.handleShow, params)
	case "references":
		result, err = dispatchTyped(ctx, s.handleReferences, params)
	case "declaration":
		result, err = dispatchTyped(ctx, s.handleDeclaration, params)
	case "implementations":
		result, err = dispatchTyped(ctx, s.handleImplementations, params)
	case "subtypes":
		result, err = dispatchTyped(ctx, s.handleSubtypes, params)
	case "supertypes":
		result, err = dispatchTyped(ctx, s.handleSupertypes, params)
	case "calls":
		result, err = dispatchTyped(ctx, s.handleCalls, params)
	case "rename":
		result, err = dispatchTyped(ctx, s.handleRename, params)
	case "move-file":
		result, err = dispatchTyped(ctx, s.handleMoveFile, params)
	case "resolve-symbol":
		result, err = dispatchTyped(ctx, s.handleResolveSymbol, params)
	case "restart-workspace":
		result, err = dispatchTyped(ctx, s.handleRestartWorkspace, params)
	case "remove-workspace":
		result, err = dispatchTyped(ctx, s.handleRemoveWorkspace, params)
	case "add-workspace":
		result, err = dispatchTyped(ctx, s.handleAddWorkspace, params)
	case "raw-lsp-request":
		result, err = dispatchTyped(ctx, s.handleRawLSPRequest, params)
	default:
		return map[string]any{"error": fmt.Sprintf("Unknown method: %s", method)}
	}

	if err != nil {
		var pe *paramsError
		if errors.As(err, &pe) {
			return map[string]any{"error": fmt.Sprintf("Invalid params: %s", pe.msg)}
		}
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{"result": result}
}

// paramsError marks a request decoding or validation failure.
type paramsError struct{ msg string }

func (e *paramsError) Error() string { return e.msg }

func invalidParams(format string, args ...any) error {
	return &paramsError{msg: fmt.Sprintf(format, args...)}
}

// dispatchTyped decodes params into the handler's parameter type.
func dispatchTyped[P any](ctx context.Context, handler func(context.Context, P) (any, error), params json.RawMessage) (any, error) {
	var p P
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("%v", err)
		}
	}
	return handler(ctx, p)
}
