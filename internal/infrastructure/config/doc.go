// Package config loads server configuration.
//
// Values are layered: built-in defaults, then an optional TOML or YAML file
// ($MCP_TERMINAL_CONFIG or --config), then environment variables. Command
// line flags are applied on top by the caller.
//
// Environment variables:
//
//	TRANSPORT           stdio | http
//	HOST, PORT          HTTP listen address
//	MAX_CONNECTIONS     concurrent HTTP connections, 0 = unlimited
//	LOG_LEVEL           debug | info | warn | error
//	LOG_DEV             console encoding when true
//	LOG_OUTPUT          stderr, stdout or a file path
//	RATE_LIMIT_RPS      per-client requests per second
//	RATE_LIMIT_BURST    per-client burst
//	RATE_LIMIT_ENABLED  toggle rate limiting
package config
