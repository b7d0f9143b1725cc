// Package http is the optional HTTP transport.
//
// Routes:
//
//	GET    /health                  liveness and counters
//	GET    /metrics                 Prometheus exposition
//	GET    /tools                   tool descriptions
//	POST   /tools/:id               call any tool, body = arguments
//	POST   /execute                 {command, cwd?, timeout_secs?}
//	POST   /sessions                {cwd?, shell?, project?}
//	GET    /sessions?project=       list sessions
//	GET    /sessions/:id            session info
//	POST   /sessions/:id/input      {input}
//	GET    /sessions/:id/output     destructive read, ?lines=N
//	DELETE /sessions/:id            close
//	GET    /sessions/:id/attach     WebSocket stream
//
// Errors are {"error": "..."} with 404 for unknown sessions or tools, 504
// for execute timeouts, 400 for bad arguments and 500 otherwise.
package http
