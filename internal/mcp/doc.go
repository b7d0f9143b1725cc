// Package mcp serves registry tools over the Model Context Protocol using
// the official Go SDK.
//
// Each registry tool is added to the SDK server under its id without the
// service prefix, with a JSON Schema built from its parameters. The SDK
// handles framing, initialize, ping and tools/list; tools/call lands in a
// handler that routes to the registry.
//
// Calls run concurrently, so a long execute never holds up a read_output
// poll. Tool failures are not protocol errors: they come back as a normal
// result with isError set and the text "ERROR: <message>". Malformed
// arguments and unknown tools are rejected with -32602.
package mcp
