package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestCORS(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(DefaultCORSConfig()))
	router.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": []string{}})
	})

	tests := []struct {
		name           string
		method         string
		origin         string
		wantStatus     int
		wantCORSHeader bool
	}{
		{"loopback GET", http.MethodGet, "http://localhost:3000", http.StatusOK, true},
		{"loopback preflight", http.MethodOptions, "http://127.0.0.1:8080", http.StatusNoContent, true},
		{"no origin header", http.MethodGet, "", http.StatusOK, false},
		{"foreign GET", http.MethodGet, "http://evil.example", http.StatusForbidden, false},
		{"foreign preflight", http.MethodOptions, "https://evil.example", http.StatusForbidden, false},
		{"loopback lookalike", http.MethodGet, "http://localhost.evil.example", http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/sessions", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			allowOrigin := w.Header().Get("Access-Control-Allow-Origin")
			if tt.wantCORSHeader {
				assert.Equal(t, tt.origin, allowOrigin)
			} else {
				assert.Empty(t, allowOrigin)
			}
		})
	}
}

func TestCORS_ExplicitOrigins(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(NewCORSConfig([]string{"http://localhost:3000"})))
	router.GET("/sessions", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORS_Wildcard(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(NewCORSConfig([]string{"*"})))
	router.GET("/sessions", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig_AllowedRequest(t *testing.T) {
	cfg := DefaultCORSConfig()

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"no origin", "", true},
		{"same host", "http://example.test:8765", true},
		{"loopback", "http://localhost:5173", true},
		{"ipv6 loopback", "http://[::1]:5173", true},
		{"foreign", "http://evil.example", false},
		{"non-http scheme", "file://localhost", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.test:8765/sessions", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, cfg.AllowedRequest(req))
		})
	}

	listed := NewCORSConfig([]string{"https://app.example"})
	assert.True(t, listed.Allowed("https://app.example"))
	assert.False(t, listed.Allowed("http://localhost:3000"))
}

func TestRequireJSON(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequireJSON())
	router.POST("/execute", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.DELETE("/sessions/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/sessions", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"json", http.MethodPost, "/execute", "application/json", `{"command":"ls"}`, http.StatusOK},
		{"json with charset", http.MethodPost, "/execute", "application/json; charset=utf-8", `{}`, http.StatusOK},
		{"text/plain", http.MethodPost, "/execute", "text/plain", `{"command":"ls"}`, http.StatusUnsupportedMediaType},
		{"form", http.MethodPost, "/execute", "application/x-www-form-urlencoded", `command=ls`, http.StatusUnsupportedMediaType},
		{"body without type", http.MethodPost, "/execute", "", `{"command":"ls"}`, http.StatusUnsupportedMediaType},
		{"bodiless delete", http.MethodDelete, "/sessions/x", "", "", http.StatusOK},
		{"get ignores type", http.MethodGet, "/sessions", "text/plain", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))

	// Limits are per client.
	assert.Equal(t, http.StatusOK, send("10.0.0.2"))
}

func TestRateLimitEvictsIdleClients(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	l := newClientLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute}, clock)

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("b"))
	assert.False(t, l.allow("a"))
	assert.Equal(t, 2, l.size())

	now = now.Add(30 * time.Second)
	assert.True(t, l.allow("b"))

	now = now.Add(40 * time.Second)
	assert.True(t, l.allow("c"))
	assert.Equal(t, 2, l.size(), "a idle for 70s is evicted, b seen 40s ago stays")

	assert.True(t, l.allow("a"), "evicted client starts with a full bucket")
}
