// Package mcp exposes the assistant pipeline as Model Context Protocol
// tools over stdio, so agent hosts (Claude Desktop, IDE agents) can drive
// the same classify/route/execute path the HTTP API serves.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/koopa0/kiosk/internal/assistant"
	"github.com/koopa0/kiosk/internal/knowledge"
	"github.com/koopa0/kiosk/internal/strategy"
)

// QueryProcessor is the assistant surface the MCP server drives.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, req assistant.Request) (*assistant.Response, error)
}

// Searcher is the knowledge surface behind the knowledge_search tool.
// *knowledge.Store is the production implementation.
type Searcher interface {
	Search(ctx context.Context, collection knowledge.Collection, query string, opts ...knowledge.SearchOption) ([]knowledge.Match, error)
	HybridSearch(ctx context.Context, query string, limit int) ([]knowledge.Match, error)
}

// StrategySource lists the loaded strategy snapshot.
type StrategySource interface {
	Strategies() []strategy.Strategy
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string

	Assistant  QueryProcessor // Required
	Knowledge  Searcher       // Required
	Strategies StrategySource // Optional: nil hides list_strategies

	Logger *slog.Logger
}

// Server wraps the MCP SDK server around the assistant pipeline.
type Server struct {
	mcpServer *sdk.Server

	assistant  QueryProcessor
	knowledge  Searcher
	strategies StrategySource
	logger     *slog.Logger

	name    string
	version string
}

// NewServer creates an MCP server with all tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Assistant == nil {
		return nil, fmt.Errorf("assistant is required")
	}
	if cfg.Knowledge == nil {
		return nil, fmt.Errorf("knowledge searcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer:  mcpServer,
		assistant:  cfg.Assistant,
		knowledge:  cfg.Knowledge,
		strategies: cfg.Strategies,
		logger:     logger,
		name:       cfg.Name,
		version:    cfg.Version,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return s, nil
}

// Run starts the MCP server on the given transport. Blocking; returns
// when the transport closes or ctx is canceled.
func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	if err := s.registerProcessQuery(); err != nil {
		return err
	}
	if err := s.registerKnowledgeSearch(); err != nil {
		return err
	}
	if s.strategies != nil {
		if err := s.registerListStrategies(); err != nil {
			return err
		}
	}
	return nil
}
