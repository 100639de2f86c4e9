package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dshills/lantern/internal/config"
	"github.com/dshills/lantern/internal/lsp"
	"github.com/dshills/lantern/internal/registry"
)

// Session is the process-global registry of workspaces, keyed by canonical
// root and then server name. The map lock is never held across child-process
// I/O: getOrCreate inserts the workspace entry under the write lock and
// drives startup afterwards, serializing concurrent first access on the
// workspace's own lock.
type Session struct {
	mu         sync.RWMutex
	workspaces map[string]map[string]*Workspace

	cfgMu sync.RWMutex
	cfg   *config.Config

	log *zap.Logger
}

// NewSession creates an empty session.
func NewSession(cfg *config.Config, log *zap.Logger) *Session {
	return &Session{
		workspaces: make(map[string]map[string]*Workspace),
		cfg:        cfg,
		log:        log.Named("session"),
	}
}

// Config returns the current configuration.
func (s *Session) Config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// SetConfig replaces the session's configuration.
func (s *Session) SetConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

func (s *Session) requestTimeout() time.Duration {
	return time.Duration(s.Config().Daemon.RequestTimeout) * time.Second
}

func canonicalRoot(root string) string {
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}

// serverForFile resolves the registry entry for a file path.
func (s *Session) serverForFile(path string) (*registry.ServerConfig, error) {
	lang := lsp.LanguageID(path)
	server := registry.ServerForLanguage(lang, s.Config())
	if server == nil {
		return nil, fmt.Errorf("no language server found for %s", path)
	}
	return server, nil
}

// WorkspaceForFile ensures a workspace (with a running server) exists for
// the file's language under root and returns it.
func (s *Session) WorkspaceForFile(ctx context.Context, path, root string) (*Workspace, error) {
	server, err := s.serverForFile(path)
	if err != nil {
		return nil, err
	}
	return s.getOrCreate(ctx, root, server)
}

// WorkspaceForLanguage mirrors WorkspaceForFile for an explicit language id.
func (s *Session) WorkspaceForLanguage(ctx context.Context, languageID, root string) (*Workspace, error) {
	server := registry.ServerForLanguage(languageID, s.Config())
	if server == nil {
		return nil, fmt.Errorf("no language server found for language %s", languageID)
	}
	return s.getOrCreate(ctx, root, server)
}

func (s *Session) getOrCreate(ctx context.Context, root string, server *registry.ServerConfig) (*Workspace, error) {
	root = canonicalRoot(root)

	s.mu.Lock()
	byServer, ok := s.workspaces[root]
	if !ok {
		byServer = make(map[string]*Workspace)
		s.workspaces[root] = byServer
	}
	ws, ok := byServer[server.Name]
	if !ok {
		ws = New(root, server, s.requestTimeout(), s.log)
		byServer[server.Name] = ws
	}
	s.mu.Unlock()

	if err := ws.StartServer(ctx); err != nil {
		return nil, err
	}
	return ws, nil
}

// ClientForFile returns the running client for the file's language under
// root, or nil. Never mutates the session.
func (s *Session) ClientForFile(path, root string) *lsp.Client {
	server, err := s.serverForFile(path)
	if err != nil {
		return nil
	}
	return s.clientFor(root, server.Name)
}

// ClientForLanguage mirrors ClientForFile for an explicit language id.
func (s *Session) ClientForLanguage(languageID, root string) *lsp.Client {
	server := registry.ServerForLanguage(languageID, s.Config())
	if server == nil {
		return nil
	}
	return s.clientFor(root, server.Name)
}

func (s *Session) clientFor(root, serverName string) *lsp.Client {
	root = canonicalRoot(root)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if byServer, ok := s.workspaces[root]; ok {
		if ws, ok := byServer[serverName]; ok {
			return ws.Client()
		}
	}
	return nil
}

// EnsureDocumentOpen opens (or refreshes) a document in the file's
// workspace.
func (s *Session) EnsureDocumentOpen(ctx context.Context, path, root string) (*OpenDocument, error) {
	ws, err := s.WorkspaceForFile(ctx, path, root)
	if err != nil {
		return nil, err
	}
	return ws.EnsureDocumentOpen(ctx, path)
}

// CloseWorkspace stops every server under root and removes the entry,
// returning the names of the servers that were stopped.
func (s *Session) CloseWorkspace(ctx context.Context, root string) []string {
	root = canonicalRoot(root)

	s.mu.Lock()
	byServer := s.workspaces[root]
	delete(s.workspaces, root)
	s.mu.Unlock()

	var stopped []string
	for name, ws := range byServer {
		_ = ws.StopServer(ctx)
		stopped = append(stopped, name)
	}
	sort.Strings(stopped)
	return stopped
}

// RestartWorkspace stops and restarts every server under root in place,
// returning the names that restarted successfully.
func (s *Session) RestartWorkspace(ctx context.Context, root string) []string {
	root = canonicalRoot(root)

	s.mu.RLock()
	byServer := s.workspaces[root]
	workspaces := make([]*Workspace, 0, len(byServer))
	for _, ws := range byServer {
		workspaces = append(workspaces, ws)
	}
	s.mu.RUnlock()

	var restarted []string
	for _, ws := range workspaces {
		_ = ws.StopServer(ctx)
		if err := ws.StartServer(ctx); err != nil {
			s.log.Warn("restart failed", zap.String("server", ws.ServerName()), zap.Error(err))
			continue
		}
		restarted = append(restarted, ws.ServerName())
	}
	sort.Strings(restarted)
	return restarted
}

// CloseAll stops every server in the session, aggregating nothing fatal;
// used on daemon shutdown.
func (s *Session) CloseAll(ctx context.Context) error {
	s.mu.Lock()
	all := s.workspaces
	s.workspaces = make(map[string]map[string]*Workspace)
	s.mu.Unlock()

	var err error
	for root, byServer := range all {
		for _, ws := range byServer {
			if stopErr := ws.StopServer(ctx); stopErr != nil {
				err = multierr.Append(err, fmt.Errorf("stopping %s in %s: %w", ws.ServerName(), root, stopErr))
			}
		}
	}
	return err
}

// WorkspaceInfo describes one workspace for describe-session.
type WorkspaceInfo struct {
	Root          string   `json:"root"`
	Server        string   `json:"language"`
	ServerPID     int      `json:"server_pid,omitempty"`
	OpenDocuments []string `json:"open_documents"`
}

// Describe snapshots every workspace.
func (s *Session) Describe() []WorkspaceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []WorkspaceInfo
	for root, byServer := range s.workspaces {
		for name, ws := range byServer {
			info := WorkspaceInfo{
				Root:          root,
				Server:        name,
				OpenDocuments: ws.OpenDocumentURIs(),
			}
			if client := ws.Client(); client != nil {
				info.ServerPID = client.PID()
			}
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Root != infos[j].Root {
			return infos[i].Root < infos[j].Root
		}
		return infos[i].Server < infos[j].Server
	})
	return infos
}

// ExcludedLanguages returns the configured language exclusions as a set.
func (s *Session) ExcludedLanguages() map[string]bool {
	set := make(map[string]bool)
	for _, lang := range s.Config().Workspaces.ExcludedLanguages {
		set[strings.ToLower(lang)] = true
	}
	return set
}
