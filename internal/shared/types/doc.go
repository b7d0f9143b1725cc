// Package types provides the value types shared by tool providers and the
// transports that expose them.
//
//   - Service: a provider and the tools it offers
//   - Tool, Parameter: tool descriptions used for MCP tools/list and GET /tools
//   - Context: per-call metadata (request id, transport)
//   - Result: outcome of a tool call, as text and structured data
package types
