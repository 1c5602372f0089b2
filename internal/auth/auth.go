// Package auth guards the HTTP surface with an optional static bearer token.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// exemptPaths are always public regardless of auth configuration. The page
// itself is public; the data it loads is not.
var exemptPaths = map[string]bool{
	"/":                    true,
	"/index.html":          true,
	"/app.js":              true,
	"/styles.css":          true,
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/tle/metadata": true,
}

// queryTokenPaths accept the token as ?access_token= because EventSource
// cannot set request headers.
var queryTokenPaths = map[string]bool{
	"/api/v1/stream/telemetry": true,
}

func isExempt(path string) bool {
	return exemptPaths[path]
}

// requestToken returns the bearer token presented by r, or "".
func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token
		}
		return ""
	}
	if queryTokenPaths[r.URL.Path] {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := requestToken(r)
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
