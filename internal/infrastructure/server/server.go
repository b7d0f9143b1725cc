package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	apihttp "github.com/Yahook/mcp-terminal/internal/api/http"
	"github.com/Yahook/mcp-terminal/internal/api/middleware"
	"github.com/Yahook/mcp-terminal/internal/infrastructure/config"
	"github.com/Yahook/mcp-terminal/internal/infrastructure/monitoring"
	"github.com/Yahook/mcp-terminal/internal/mcp"
	termprovider "github.com/Yahook/mcp-terminal/internal/providers/terminal"
	"github.com/Yahook/mcp-terminal/internal/service"
	"github.com/Yahook/mcp-terminal/internal/terminal"
)

const shutdownTimeout = 10 * time.Second

// Server wires the session manager, the tool registry and a transport.
type Server struct {
	config   *config.Config
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	manager  *terminal.Manager
	registry *service.Registry
	version  string
}

// Option customises a Server.
type Option func(*Server)

// WithOpener replaces the pseudo-terminal implementation.
func WithOpener(o terminal.Opener) Option {
	return func(s *Server) { s.manager.WithOpener(o) }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *zap.Logger, version string, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics := monitoring.NewMetrics()
	manager := terminal.NewManager(logger.Named("terminal")).WithMetrics(metrics)
	registry := service.NewRegistry().WithRecorder(metrics)

	if err := registry.Register(termprovider.NewProvider(manager, logger.Named("tools"))); err != nil {
		return nil, fmt.Errorf("failed to register terminal provider: %w", err)
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		manager:  manager,
		registry: registry,
		version:  version,
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Info("server initialized",
		zap.String("transport", cfg.Transport),
		zap.String("version", version),
		zap.Int("tools", len(registry.Tools())),
	)
	return s, nil
}

// Manager returns the session manager
func (s *Server) Manager() *terminal.Manager {
	return s.manager
}

// Run serves the configured transport until ctx is done or, for stdio, the
// client closes stdin.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	switch s.config.Transport {
	case config.TransportHTTP:
		addr := s.config.Server.Addr()
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		return s.ServeHTTP(ctx, ln)
	default:
		return s.ServeStdio(ctx, stdin, stdout)
	}
}

// ServeStdio speaks MCP over the given streams.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("serving MCP over stdio")
	err := mcp.NewServer(s.registry, s.logger, s.version).Serve(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServeHTTP serves the HTTP transport on ln until ctx is done.
func (s *Server) ServeHTTP(ctx context.Context, ln net.Listener) error {
	if limit := s.config.Server.MaxConnections; limit > 0 {
		ln = netutil.LimitListener(ln, limit)
	}

	handler, err := s.httpHandler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP shutdown incomplete", zap.Error(err))
		return err
	}
	return nil
}

func (s *Server) httpHandler() (http.Handler, error) {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	routerCfg := apihttp.RouterConfig{CORS: middleware.NewCORSConfig(s.config.Server.CORSOrigins)}
	if rl := s.config.RateLimit; rl.Enabled {
		s.logger.Info("rate limiting enabled",
			zap.Int("rps", rl.RequestsPerSecond),
			zap.Int("burst", rl.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = rl.RequestsPerSecond
		limits.Burst = rl.Burst
		routerCfg.RateLimit = &limits
	}

	handlers := apihttp.NewHandlers(s.registry, s.manager, s.metrics, s.logger, s.version)
	router := apihttp.NewRouter(handlers, routerCfg)

	gzip, err := gzhttp.NewWrapper(gzhttp.MinSize(1024))
	if err != nil {
		return nil, fmt.Errorf("failed to build gzip wrapper: %w", err)
	}
	compressed := gzip(router)

	// WebSocket upgrades need the raw connection, so attach bypasses gzip.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/attach") {
			router.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	}), nil
}

// Close terminates every session and flushes the logger
func (s *Server) Close() error {
	s.logger.Info("shutting down", zap.Int("sessions", s.manager.Count()))
	s.manager.Shutdown()
	_ = s.logger.Sync()
	return nil
}
