// Package terminal exposes the pseudo-terminal session manager as tools.
//
// Every tool returns a types.Result whose Text is what an MCP client sees and
// whose Data holds the same outcome as structured fields for HTTP callers.
// Failures come back as a Result with Success false and Text "ERROR: <msg>",
// together with the underlying error so transports can map it.
//
// Tools:
//   - terminal.execute: run `$SHELL -c command` to completion
//   - terminal.create_session: start an interactive shell
//   - terminal.send_input: write raw input (include "\n" to submit)
//   - terminal.read_output: destructive read of new output, with liveness
//   - terminal.close_session: terminate a shell
//   - terminal.list_sessions: snapshot of sessions, optionally by project
//
// Example Usage:
//
//	provider := terminal.NewProvider(manager, logger)
//	result, err := provider.Execute(ctx, terminal.ToolExecute,
//	    map[string]interface{}{"command": "ls -la"}, appCtx)
//	fmt.Println(result.Text) // "Exit code: 0\n\n..."
package terminal
