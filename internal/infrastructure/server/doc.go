// Package server assembles the process: metrics, session manager, tool
// registry and one transport (MCP over stdio, or HTTP). Close tears down
// every session so no shell outlives the server.
package server
