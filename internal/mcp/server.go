// Package mcp provides an MCP (Model Context Protocol) server for grag.
//
// The server exposes the parameter-scheduling side of grag as tools: resolve
// a base (λ, δ), preview a full schedule, manage presets and run the
// synthetic sampler. It never touches a live diffusion model.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/grag/internal/config"
	"github.com/nvandessel/grag/internal/constants"
	"github.com/nvandessel/grag/internal/logging"
	"github.com/nvandessel/grag/internal/patch"
	"github.com/nvandessel/grag/internal/pathutil"
	"github.com/nvandessel/grag/internal/ratelimit"
	"github.com/nvandessel/grag/internal/store"
)

// Server wraps the MCP SDK server and provides grag-specific functionality.
type Server struct {
	server  *sdk.Server
	presets store.PresetStore
	backend constants.Backend
	config  *config.GragConfig
	root    string

	// writeErr is non-nil when the preset directory lies outside ~/.grag and
	// the project's .grag; save and delete are refused with it.
	writeErr error

	logger       *slog.Logger
	diagnostics  *logging.DiagnosticsLog
	controller   *patch.Controller
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters

	closeOnce sync.Once
	closeErr  error
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "grag")
	Version string // Server version
	Root    string // Project root directory

	// Settings are the loaded grag settings. Nil uses config.Default().
	Settings *config.GragConfig

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger
}

// NewServer creates a new MCP server with grag tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	localDir := store.LocalGragPath(cfg.Root)
	if err := store.EnsureDir(localDir); err != nil {
		return nil, err
	}

	presetDir, err := settings.PresetDir()
	if err != nil {
		return nil, fmt.Errorf("resolving preset directory: %w", err)
	}
	presets, backend := store.Open(constants.Backend(settings.Presets.Backend), presetDir, logger)

	var writeErr error
	if backend != constants.BackendMemory {
		writeErr = checkPresetDir(presetDir, cfg.Root)
		if writeErr != nil {
			logger.Warn("preset changes disabled over MCP", "error", writeErr)
		}
	}

	diagnostics := logging.NewDiagnosticsLog(localDir, settings.Logging.Level)

	// Audit logs live next to the project and next to the user's presets.
	globalDir, err := config.HomeDir()
	if err != nil {
		globalDir = localDir
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		presets:      presets,
		backend:      backend,
		config:       settings,
		root:         cfg.Root,
		writeErr:     writeErr,
		logger:       logger,
		diagnostics:  diagnostics,
		controller:   patch.NewController(logger, diagnostics),
		auditLogger:  NewAuditLogger(cfg.Root, globalDir),
		toolLimiters: ratelimit.NewToolLimiters(ratelimit.DefaultPolicies),
	}

	if err := s.registerTools(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	if err := s.registerResources(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}

	logger.Info("mcp server ready", "backend", backend, "root", cfg.Root)
	return s, nil
}

// checkPresetDir allows MCP clients to modify presets only when they are
// stored under ~/.grag or <root>/.grag.
func checkPresetDir(dir, root string) error {
	allowed, err := pathutil.GragDirs(root)
	if err != nil {
		return err
	}
	if err := pathutil.CheckWithin(dir, allowed); err != nil {
		return fmt.Errorf("preset directory not writable over MCP: %w", err)
	}
	return nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close closes the server and releases resources. Safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.presets.Close()
		s.diagnostics.Close()
		if err := s.auditLogger.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}
