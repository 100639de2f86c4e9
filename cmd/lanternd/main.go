// Command lanternd runs the lantern daemon: a persistent multiplexer for
// language-server processes behind a single Unix-socket RPC endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/lantern/internal/cache"
	"github.com/dshills/lantern/internal/config"
	"github.com/dshills/lantern/internal/daemon"
	"github.com/dshills/lantern/internal/workspace"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:     "lanternd",
		Short:   "Language-server multiplexing daemon",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Daemon.LogLevel)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Sync()

	cacheDir := config.CacheDir()
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	hoverCache, err := cache.Open(filepath.Join(cacheDir, "hover_cache.db"), cfg.Daemon.HoverCacheSize, logger)
	if err != nil {
		return fmt.Errorf("open hover cache: %w", err)
	}
	defer hoverCache.Close()

	symbolCache, err := cache.Open(filepath.Join(cacheDir, "symbol_cache.db"), cfg.Daemon.SymbolCacheSize, logger)
	if err != nil {
		return fmt.Errorf("open symbol cache: %w", err)
	}
	defer symbolCache.Close()

	session := workspace.NewSession(cfg, logger)
	server := daemon.NewServer(session, hoverCache, symbolCache, logger)

	logger.Info("starting lantern daemon", zap.String("version", version))
	return server.Run(ctx)
}

// newLogger writes structured logs to the daemon log file at the configured
// level. The daemon has no terminal; stderr stays quiet.
func newLogger(level string) (*zap.Logger, error) {
	logDir := config.LogDir()
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{filepath.Join(logDir, "daemon.log")}
	cfg.ErrorOutputPaths = []string{filepath.Join(logDir, "daemon.log")}
	return cfg.Build()
}
