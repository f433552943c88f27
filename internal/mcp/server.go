package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/app"
)

// Server exposes an App as MCP tools.
type Server struct {
	mcp      *mcp.Server
	app      *app.App
	registry *ToolRegistry
	metrics  *toolMetrics
	root     string
	logger   *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "docrag")
	Name string

	// Version is the server version (default: "1.0.0")
	Version string

	// Root confines ingest_file to files below this directory. Empty allows
	// any path without traversal.
	Root string

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "docrag",
		Version: "1.0.0",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server over a.
func NewServer(cfg *Config, a *app.App) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if a == nil {
		return nil, fmt.Errorf("app is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "docrag"
	}

	metrics, err := newToolMetrics(otel.Meter(meterName))
	if err != nil {
		cfg.Logger.Warn("some MCP metrics are unavailable", zap.Error(err))
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		app:      a,
		registry: NewToolRegistry(),
		metrics:  metrics,
		root:     cfg.Root,
		logger:   cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Registry returns the metadata of every registered tool.
func (s *Server) Registry() *ToolRegistry {
	return s.registry
}

// Run serves on the stdio transport until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves one session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

// toolFunc is the body of a tool. It returns the structured output and a
// short text summary for clients that ignore structured content.
type toolFunc[In, Out any] func(ctx context.Context, in In) (Out, string, error)

// addTool registers meta with the registry and fn with the MCP server,
// recording metrics for every call.
func addTool[In, Out any](s *Server, meta ToolMetadata, fn toolFunc[In, Out]) {
	s.registry.Register(&meta)

	tool := &mcp.Tool{Name: meta.Name, Description: meta.Description}
	if meta.DeferLoading {
		tool.Meta = mcp.Meta{"defer_loading": true}
	}

	mcp.AddTool(s.mcp, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		done := s.metrics.start(ctx, meta.Name)
		out, text, err := fn(ctx, in)
		done(err)

		if err != nil {
			s.logger.Warn("tool failed", zap.String("tool", meta.Name), zap.Error(err))
			var zero Out
			return nil, zero, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, out, nil
	})
}
