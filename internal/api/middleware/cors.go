package middleware

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig lists the origins allowed to call the HTTP transport from a
// browser. An empty list admits loopback origins only; "*" admits every
// origin without credentials.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// DefaultCORSConfig allows loopback origins.
func DefaultCORSConfig() CORSConfig {
	return NewCORSConfig(nil)
}

// NewCORSConfig builds a config from configured origins.
func NewCORSConfig(origins []string) CORSConfig {
	return CORSConfig{AllowOrigins: origins, MaxAge: 12 * time.Hour}
}

func (c CORSConfig) wildcard() bool {
	return slices.Contains(c.AllowOrigins, "*")
}

// Allowed reports whether a cross-origin request from origin may proceed.
func (c CORSConfig) Allowed(origin string) bool {
	switch {
	case c.wildcard():
		return true
	case len(c.AllowOrigins) == 0:
		return isLoopbackOrigin(origin)
	default:
		return slices.Contains(c.AllowOrigins, origin)
	}
}

// AllowedRequest applies Allowed to r. Requests without an Origin header
// and same-host requests are not cross-origin and always pass.
func (c CORSConfig) AllowedRequest(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	return c.Allowed(origin)
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// CORS creates a CORS middleware for the session and tool routes. Origins
// that are not allowed get 403 before any handler runs.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Accept", "Origin", "X-Request-ID"},
		ExposeHeaders:   []string{"X-Request-ID"},
		AllowWebSockets: true,
		MaxAge:          cfg.MaxAge,
	}
	if cfg.wildcard() {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOriginFunc = cfg.Allowed
		conf.AllowCredentials = true
	}
	return cors.New(conf)
}
