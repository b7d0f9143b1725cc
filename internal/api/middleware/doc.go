// Package middleware provides gin middleware for the HTTP transport: CORS
// and per-client rate limiting.
package middleware
