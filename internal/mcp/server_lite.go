// Package mcp provides the MCP server for the vitals triage engine.
// The lite server requires no external databases: SQLite for persistence and an in-process
// profile cache.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/vitals-triage-server/internal/cache"
	litecfg "github.com/vitals-triage-server/internal/config"
	"github.com/vitals-triage-server/internal/domain"
	"github.com/vitals-triage-server/internal/logging"
	"github.com/vitals-triage-server/internal/service"
	"github.com/vitals-triage-server/internal/store"
)

// LiteServer is a lightweight MCP server that requires no external databases.
type LiteServer struct {
	config    *litecfg.LiteConfig
	mcpServer *mcp.Server
	store     store.Store
	cache     *cache.MemoryCache
	svc       *service.AssessmentService
	logger    *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithStore sets a custom store instead of the SQLite file under the data directory.
func WithStore(s store.Store) LiteServerOption {
	return func(srv *LiteServer) error {
		srv.store = s
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{config: cfg}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.logger == nil {
		// stdout carries the protocol, so logs go to stderr.
		logger, err := logging.New(domain.LoggingConfig{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Output: "stderr",
		})
		if err != nil {
			return nil, err
		}
		server.logger = logger
	}

	if server.store == nil {
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		sqlite, err := store.NewSQLiteStore(cfg.DBPath(), server.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		server.store = sqlite
	}

	server.cache = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)

	engine := service.NewHealthRuleEngine(server.logger, domain.DefaultThresholds)
	resolver := service.NewProfileResolver(server.store, server.cache, nil,
		service.DefaultProfileResolverConfig(), server.logger)
	server.svc = service.NewAssessmentService(engine, resolver, server.store, nil, server.logger)

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    "vitals-triage-server-lite",
		Version: "v0.1.0",
	}, nil)
	server.registerTools()

	server.logger.Info("Lite server initialized successfully")
	return server, nil
}

// registerTools registers the engine tools with the MCP SDK.
func (s *LiteServer) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolAssessEntry,
		Description: "Classify one health record (blood pressure, glucose, medication, diet, exercise, substances) into a green/yellow/red status with reason codes, a risk score and recommended actions. Nothing is stored.",
	}, s.handleAssessEntry)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolRecordEntry,
		Description: "Assess a record against the patient's stored profile and save it.",
	}, s.handleRecordEntry)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolListEntries,
		Description: "List a patient's recorded entries, newest first, by page or by RFC3339 time window.",
	}, s.handleListEntries)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolGetDefaultThresholds,
		Description: "Return the default clinical thresholds used for patients without a personal profile.",
	}, s.handleGetDefaultThresholds)

	s.logger.WithField("tool_count", len(toolNames)).Info("Successfully registered all tools")
}

// Start runs the server over stdio until ctx is cancelled or the client disconnects.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.WithField("data_dir", s.config.DataDir).Info("Starting vitals triage MCP server (lite)")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close store")
			return err
		}
	}
	return nil
}

// Service returns the assessment service backing the tools.
func (s *LiteServer) Service() *service.AssessmentService {
	return s.svc
}
