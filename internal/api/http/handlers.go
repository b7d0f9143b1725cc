package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Yahook/mcp-terminal/internal/api/middleware"
	"github.com/Yahook/mcp-terminal/internal/infrastructure/monitoring"
	termprovider "github.com/Yahook/mcp-terminal/internal/providers/terminal"
	"github.com/Yahook/mcp-terminal/internal/service"
	"github.com/Yahook/mcp-terminal/internal/shared/id"
	"github.com/Yahook/mcp-terminal/internal/shared/types"
	"github.com/Yahook/mcp-terminal/internal/terminal"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	registry *service.Registry
	manager  *terminal.Manager
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	version  string
	upgrader *websocket.Upgrader
}

// NewHandlers creates a new handler set. metrics may be nil.
func NewHandlers(registry *service.Registry, manager *terminal.Manager, metrics *monitoring.Metrics, logger *zap.Logger, version string) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		registry: registry,
		manager:  manager,
		metrics:  metrics,
		logger:   logger.Named("http"),
		version:  version,
		upgrader: newUpgrader(middleware.DefaultCORSConfig()),
	}
}

// Health handles the health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":           "healthy",
		"version":          h.version,
		"sessions":         h.manager.Count(),
		"service_registry": h.registry.Stats(),
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

// ListTools lists every tool of every registered service
func (h *Handlers) ListTools(c *gin.Context) {
	tools := h.registry.Tools()
	c.JSON(http.StatusOK, gin.H{
		"tools": tools,
		"count": len(tools),
	})
}

// CallTool executes any registered tool. The request body is the tool's
// argument object; the response is the full tool result.
func (h *Handlers) CallTool(c *gin.Context) {
	params, ok := h.bindParams(c)
	if !ok {
		return
	}

	result, err := h.registry.Execute(c.Request.Context(), c.Param("id"), params, h.appContext(c))
	if err != nil {
		if result == nil {
			result = types.Failure(err.Error())
		}
		c.JSON(statusFor(err), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Execute runs a one-shot command
func (h *Handlers) Execute(c *gin.Context) {
	params, ok := h.bindParams(c)
	if !ok {
		return
	}
	h.respond(c, termprovider.ToolExecute, params, http.StatusOK)
}

// CreateSession starts an interactive shell
func (h *Handlers) CreateSession(c *gin.Context) {
	params, ok := h.bindParams(c)
	if !ok {
		return
	}
	h.respond(c, termprovider.ToolCreateSession, params, http.StatusCreated)
}

// ListSessions lists sessions, optionally filtered by ?project=
func (h *Handlers) ListSessions(c *gin.Context) {
	params := map[string]interface{}{}
	if project, ok := c.GetQuery("project"); ok {
		params["project"] = project
	}
	h.respond(c, termprovider.ToolListSessions, params, http.StatusOK)
}

// GetSession describes one session without touching its output
func (h *Handlers) GetSession(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	info, err := h.manager.Info(sessionID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// SendInput writes the body's "input" to a session
func (h *Handlers) SendInput(c *gin.Context) {
	params, ok := h.bindParams(c)
	if !ok {
		return
	}
	params["session_id"] = c.Param("id")
	h.respond(c, termprovider.ToolSendInput, params, http.StatusOK)
}

// ReadOutput drains a session's new output, optionally the last ?lines=
func (h *Handlers) ReadOutput(c *gin.Context) {
	params := map[string]interface{}{"session_id": c.Param("id")}
	if raw := c.Query("lines"); raw != "" {
		lines, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lines must be an integer"})
			return
		}
		params["lines"] = lines
	}
	h.respond(c, termprovider.ToolReadOutput, params, http.StatusOK)
}

// CloseSession terminates a session
func (h *Handlers) CloseSession(c *gin.Context) {
	params := map[string]interface{}{"session_id": c.Param("id")}
	h.respond(c, termprovider.ToolCloseSession, params, http.StatusOK)
}

// respond runs a terminal tool and writes its structured data.
func (h *Handlers) respond(c *gin.Context, toolID string, params map[string]interface{}, okStatus int) {
	result, err := h.registry.Execute(c.Request.Context(), toolID, params, h.appContext(c))
	if err != nil {
		h.logger.Debug("tool call failed",
			zap.String("tool", toolID),
			zap.String("request_id", requestID(c)),
			zap.Error(err),
		)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(okStatus, result.Data)
}

func (h *Handlers) bindParams(c *gin.Context) (map[string]interface{}, bool) {
	params := map[string]interface{}{}
	if c.Request.ContentLength == 0 {
		return params, true
	}
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object: " + err.Error()})
		return nil, false
	}
	return params, true
}

// sessionParam returns the :id path parameter. Anything that is not shaped
// like a session id is answered with 404 without a manager lookup.
func sessionParam(c *gin.Context) (string, bool) {
	sessionID := c.Param("id")
	if !id.IsSessionID(sessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("%v: %s", terminal.ErrNotFound, sessionID)})
		return "", false
	}
	return sessionID, true
}

func (h *Handlers) appContext(c *gin.Context) *types.Context {
	return &types.Context{
		RequestID: requestID(c),
		Transport: "http",
		Client:    c.ClientIP(),
	}
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, terminal.ErrNotFound),
		errors.Is(err, service.ErrUnknownTool),
		errors.Is(err, service.ErrUnknownService):
		return http.StatusNotFound
	case errors.Is(err, terminal.ErrTimedOut):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrInvalidParams),
		errors.Is(err, service.ErrInvalidToolID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
