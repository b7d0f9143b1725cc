package terminal

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/Yahook/mcp-terminal/internal/shared/types"
	term "github.com/Yahook/mcp-terminal/internal/terminal"
)

const (
	ServiceID = "terminal"

	ToolExecute       = "terminal.execute"
	ToolCreateSession = "terminal.create_session"
	ToolSendInput     = "terminal.send_input"
	ToolReadOutput    = "terminal.read_output"
	ToolCloseSession  = "terminal.close_session"
	ToolListSessions  = "terminal.list_sessions"

	noOutput   = "(no new output)"
	noSessions = "No active sessions"
)

// Provider exposes the session manager as terminal.* tools
type Provider struct {
	manager *term.Manager
	logger  *zap.Logger
}

// NewProvider creates a terminal provider over manager
func NewProvider(manager *term.Manager, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{manager: manager, logger: logger}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          ServiceID,
		Name:        "Terminal Service",
		Description: "Run shell commands and drive interactive shells on pseudo-terminals",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"pty",
			"shell",
			"interactive",
			"sessions",
		},
		Tools: tools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	logger := p.logger.With(zap.String("tool", toolID))
	if appCtx != nil && appCtx.RequestID != "" {
		logger = logger.With(zap.String("request_id", appCtx.RequestID))
	}

	switch toolID {
	case ToolExecute:
		return p.execute(ctx, logger, params)
	case ToolCreateSession:
		return p.createSession(logger, params)
	case ToolSendInput:
		return p.sendInput(logger, params)
	case ToolReadOutput:
		return p.readOutput(logger, params)
	case ToolCloseSession:
		return p.closeSession(logger, params)
	case ToolListSessions:
		return p.listSessions(params)
	default:
		return fail(fmt.Errorf("%w: unknown tool: %s", ErrInvalidParams, toolID))
	}
}

func (p *Provider) execute(ctx context.Context, logger *zap.Logger, params map[string]interface{}) (*types.Result, error) {
	command, err := requireString(params, "command")
	if err != nil {
		return fail(err)
	}
	cwd, err := optionalString(params, "cwd")
	if err != nil {
		return fail(err)
	}
	timeoutSecs, hasTimeout, err := optionalUint(params, "timeout_secs")
	if err != nil {
		return fail(err)
	}

	timeout := term.DefaultExecTimeout
	if hasTimeout {
		timeout = time.Duration(timeoutSecs) * time.Second
		// The manager reads zero as unset; an explicit 0 expires at the first poll.
		if timeout == 0 {
			timeout = time.Nanosecond
		}
	}

	logger.Info("executing command", zap.String("command", command), zap.String("cwd", cwd))

	result, err := p.manager.Execute(ctx, command, cwd, timeout)
	if err != nil {
		return fail(err)
	}

	return &types.Result{
		Success: true,
		Text:    fmt.Sprintf("Exit code: %d\n\n%s", result.ExitCode, result.Stdout),
		Data: map[string]interface{}{
			"stdout":    result.Stdout,
			"exit_code": result.ExitCode,
		},
	}, nil
}

func (p *Provider) createSession(logger *zap.Logger, params map[string]interface{}) (*types.Result, error) {
	cwd, err := optionalString(params, "cwd")
	if err != nil {
		return fail(err)
	}
	shell, err := optionalString(params, "shell")
	if err != nil {
		return fail(err)
	}
	project, err := optionalString(params, "project")
	if err != nil {
		return fail(err)
	}

	logger.Info("creating session", zap.String("cwd", cwd), zap.String("project", project))

	sessionID, err := p.manager.CreateSession(cwd, shell, project)
	if err != nil {
		return fail(err)
	}

	data := map[string]interface{}{"session_id": sessionID}
	text, err := sonic.MarshalString(data)
	if err != nil {
		return fail(err)
	}
	return &types.Result{Success: true, Text: text, Data: data}, nil
}

func (p *Provider) sendInput(logger *zap.Logger, params map[string]interface{}) (*types.Result, error) {
	sessionID, err := requireString(params, "session_id")
	if err != nil {
		return fail(err)
	}
	input, err := requireString(params, "input")
	if err != nil {
		return fail(err)
	}

	logger.Info("sending input", zap.String("session_id", sessionID))

	if err := p.manager.SendInput(sessionID, input); err != nil {
		return fail(err)
	}
	return &types.Result{
		Success: true,
		Text:    "Input sent",
		Data:    map[string]interface{}{"sent": len(input)},
	}, nil
}

func (p *Provider) readOutput(logger *zap.Logger, params map[string]interface{}) (*types.Result, error) {
	sessionID, err := requireString(params, "session_id")
	if err != nil {
		return fail(err)
	}
	lines, hasLines, err := optionalUint(params, "lines")
	if err != nil {
		return fail(err)
	}
	maxLines := -1
	if hasLines {
		maxLines = lines
	}

	logger.Info("reading output", zap.String("session_id", sessionID))

	output, alive, err := p.manager.ReadOutput(sessionID, maxLines)
	if err != nil {
		return fail(err)
	}

	body := output
	if body == "" {
		body = noOutput
	}
	return &types.Result{
		Success: true,
		Text:    fmt.Sprintf("alive: %t\n\n%s", alive, body),
		Data: map[string]interface{}{
			"output":   output,
			"is_alive": alive,
		},
	}, nil
}

func (p *Provider) closeSession(logger *zap.Logger, params map[string]interface{}) (*types.Result, error) {
	sessionID, err := requireString(params, "session_id")
	if err != nil {
		return fail(err)
	}

	logger.Info("closing session", zap.String("session_id", sessionID))

	if err := p.manager.CloseSession(sessionID); err != nil {
		return fail(err)
	}
	return &types.Result{
		Success: true,
		Text:    "Session closed",
		Data:    map[string]interface{}{"closed": true},
	}, nil
}

func (p *Provider) listSessions(params map[string]interface{}) (*types.Result, error) {
	project, given, err := lookupString(params, "project")
	if err != nil {
		return fail(err)
	}

	filter := term.SessionFilter{}
	if given {
		filter = term.ProjectFilter(project)
	}
	sessions := p.manager.ListSessions(filter)
	data := map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	}
	if len(sessions) == 0 {
		return &types.Result{Success: true, Text: noSessions, Data: data}, nil
	}

	text, err := sonic.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fail(err)
	}
	return &types.Result{Success: true, Text: string(text), Data: data}, nil
}

func fail(err error) (*types.Result, error) {
	return types.Failure(err.Error()), err
}
