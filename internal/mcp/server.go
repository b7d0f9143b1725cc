package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"

	"github.com/Yahook/mcp-terminal/internal/service"
	"github.com/Yahook/mcp-terminal/internal/shared/id"
	"github.com/Yahook/mcp-terminal/internal/shared/types"
)

const (
	// ServerName is reported in serverInfo.
	ServerName = "mcp-terminal"

	instructions = "Terminal session manager. Use 'execute' for simple one-off commands, " +
		"or create_session/send_input/read_output/close_session for interactive terminals."
)

// Server exposes registry tools to one MCP client at a time.
type Server struct {
	registry *service.Registry
	logger   *zap.Logger
	server   *sdk.Server

	// tools maps the MCP-visible name to the registry tool id.
	tools map[string]string

	mu       sync.Mutex
	lifetime context.Context
}

// NewServer builds a server exposing every tool in registry. MCP tool names
// are registry ids without their service prefix.
func NewServer(registry *service.Registry, logger *zap.Logger, version string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mcp")

	s := &Server{
		registry: registry,
		logger:   logger,
		tools:    make(map[string]string),
		lifetime: context.Background(),
	}
	s.server = sdk.NewServer(&sdk.Implementation{Name: ServerName, Version: version}, &sdk.ServerOptions{
		Instructions: instructions,
		Logger:       slog.New(zapslog.NewHandler(logger.Core(), zapslog.WithName("sdk"))),
		Capabilities: &sdk.ServerCapabilities{Tools: &sdk.ToolCapabilities{}},
		InitializedHandler: func(_ context.Context, req *sdk.InitializedRequest) {
			logger.Info("client initialized", zap.String("client", clientName(req.Session)))
		},
	})

	for _, tool := range registry.Tools() {
		_, name, _ := strings.Cut(tool.ID, ".")
		if existing, ok := s.tools[name]; ok {
			logger.Warn("duplicate tool name, keeping first",
				zap.String("name", name),
				zap.String("kept", existing),
				zap.String("dropped", tool.ID),
			)
			continue
		}
		s.tools[name] = tool.ID
		s.server.AddTool(describe(name, tool), s.handler(tool.ID))
	}
	return s
}

// Serve speaks newline-delimited JSON-RPC on r and w until EOF or ctx is
// done. In-flight calls finish before Serve returns; cancelling ctx also
// cancels them.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	return s.Run(ctx, &sdk.IOTransport{Reader: io.NopCloser(r), Writer: nopWriteCloser{w}})
}

// Run serves a single session over t.
func (s *Server) Run(ctx context.Context, t sdk.Transport) error {
	s.mu.Lock()
	s.lifetime = ctx
	s.mu.Unlock()

	err := s.server.Run(ctx, t)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("session ended", zap.Error(err))
	}
	return err
}

// Connect starts a session over t without blocking.
func (s *Server) Connect(ctx context.Context, t sdk.Transport) (*sdk.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// Tools returns the MCP tool names mapped to registry ids.
func (s *Server) Tools() map[string]string {
	out := make(map[string]string, len(s.tools))
	for name, toolID := range s.tools {
		out[name] = toolID
	}
	return out
}

func (s *Server) handler(toolID string) sdk.ToolHandler {
	return func(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
		// Request contexts are detached from the connection, so tie them to
		// the serving context.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		s.mu.Lock()
		lifetime := s.lifetime
		s.mu.Unlock()
		stop := context.AfterFunc(lifetime, cancel)
		defer stop()

		params := map[string]interface{}{}
		if raw := req.Params.Arguments; len(raw) > 0 {
			if err := sonic.Unmarshal(raw, &params); err != nil {
				return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "arguments must be an object: " + err.Error()}
			}
			if params == nil {
				params = map[string]interface{}{}
			}
		}

		appCtx := &types.Context{
			RequestID: id.NewRequestID().String(),
			Transport: "stdio",
			Client:    clientName(req.Session),
		}

		result, err := s.registry.Execute(ctx, toolID, params, appCtx)
		if errors.Is(err, service.ErrInvalidParams) {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
		}
		if err != nil {
			s.logger.Debug("tool call failed",
				zap.String("tool", toolID),
				zap.String("request_id", appCtx.RequestID),
				zap.Error(err),
			)
			if result == nil {
				result = types.Failure(err.Error())
			}
			return textResult(result.Text, true), nil
		}
		return textResult(result.Text, !result.Success), nil
	}
}

func clientName(session *sdk.ServerSession) string {
	if session == nil {
		return ""
	}
	params := session.InitializeParams()
	if params == nil || params.ClientInfo == nil {
		return ""
	}
	return params.ClientInfo.Name
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
