// Command mcp-terminal serves terminal sessions to MCP clients.
//
// By default it speaks newline-delimited JSON-RPC on stdin/stdout, which is
// how MCP hosts launch tool servers. With --transport http it serves the same
// tools as a REST API plus a WebSocket attach endpoint.
//
// Usage:
//
//	# MCP over stdio (the default)
//	mcp-terminal
//
//	# HTTP on :9000 with debug logs
//	mcp-terminal --transport http --port 9000 --log-level debug
//
//	# One-off command
//	mcp-terminal exec --timeout 5s -- ls -la
//
// Configuration is layered: defaults, then a TOML or YAML file
// (--config or $MCP_TERMINAL_CONFIG), then environment variables such as
// TRANSPORT, PORT and LOG_LEVEL, then flags.
//
// Signals:
//   - SIGINT, SIGTERM: close every session and exit
package main
