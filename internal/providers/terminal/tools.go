package terminal

import "github.com/Yahook/mcp-terminal/internal/shared/types"

func sessionIDParam() types.Parameter {
	return types.Parameter{
		Name:        "session_id",
		Type:        types.ParamString,
		Description: "Session ID returned by create_session",
		Required:    true,
	}
}

func tools() []types.Tool {
	return []types.Tool{
		{
			ID:          ToolExecute,
			Name:        "Execute Command",
			Description: "Execute a shell command synchronously. Waits for completion and returns stdout and exit code. Use for simple one-off commands.",
			Parameters: []types.Parameter{
				{
					Name:        "command",
					Type:        types.ParamString,
					Description: `Shell command to execute (e.g. "ls -la", "go build ./...")`,
					Required:    true,
				},
				{
					Name:        "cwd",
					Type:        types.ParamString,
					Description: "Working directory. Defaults to server's cwd",
				},
				{
					Name:        "timeout_secs",
					Type:        types.ParamInteger,
					Description: "Timeout in seconds. Default: 300 (5 min)",
				},
			},
			Returns: "exit_code_and_stdout",
		},
		{
			ID:          ToolCreateSession,
			Name:        "Create Terminal Session",
			Description: "Create a new interactive terminal session with a PTY. Returns a session_id for subsequent send_input/read_output calls. Use for long-running or interactive commands.",
			Parameters: []types.Parameter{
				{
					Name:        "cwd",
					Type:        types.ParamString,
					Description: "Working directory for the shell",
				},
				{
					Name:        "shell",
					Type:        types.ParamString,
					Description: `Shell to use (e.g. "/bin/bash", "/bin/zsh"). Defaults to $SHELL`,
				},
				{
					Name:        "project",
					Type:        types.ParamString,
					Description: "Project name for tagging/filtering",
				},
			},
			Returns: "session_id",
		},
		{
			ID:          ToolSendInput,
			Name:        "Send Input",
			Description: "Send input text to an interactive terminal session. Include newline character to submit commands.",
			Parameters: []types.Parameter{
				sessionIDParam(),
				{
					Name:        "input",
					Type:        types.ParamString,
					Description: `Text to send to the terminal (include \n for Enter)`,
					Required:    true,
				},
			},
			Returns: "success",
		},
		{
			ID:          ToolReadOutput,
			Name:        "Read Output",
			Description: "Read accumulated output from a terminal session. This is a destructive read - the buffer is cleared after reading. Returns the output text and whether the session is still alive.",
			Parameters: []types.Parameter{
				sessionIDParam(),
				{
					Name:        "lines",
					Type:        types.ParamInteger,
					Description: "Max number of lines to return (from the end). Omit for all",
				},
			},
			Returns: "output_and_liveness",
		},
		{
			ID:          ToolCloseSession,
			Name:        "Close Session",
			Description: "Close and terminate a terminal session. The PTY and child process are killed.",
			Parameters:  []types.Parameter{sessionIDParam()},
			Returns:     "success",
		},
		{
			ID:          ToolListSessions,
			Name:        "List Sessions",
			Description: "List all active terminal sessions. Optionally filter by project name.",
			Parameters: []types.Parameter{
				{
					Name:        "project",
					Type:        types.ParamString,
					Description: "Filter by project name",
				},
			},
			Returns: "sessions_list",
		},
	}
}
