// Package service routes tool calls to the providers that implement them.
//
// Tool ids have the form "<service>.<tool>", e.g. "terminal.execute". The
// registry resolves the service prefix, checks the tool is declared in the
// provider's definition and times the call for metrics.
//
// Example Usage:
//
//	registry := service.NewRegistry()
//	registry.Register(terminalProvider)
//	result, err := registry.Execute(ctx, "terminal.list_sessions", params, appCtx)
package service
