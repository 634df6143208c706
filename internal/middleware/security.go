package middleware

import (
	"net/http"
)

// DefaultMaxRequestBodySize caps request bodies at 1MB.
const DefaultMaxRequestBodySize int64 = 1 << 20

// SecurityConfig holds configuration for security headers.
type SecurityConfig struct {
	// IsDevelopment disables HSTS so plain-HTTP local setups keep working.
	IsDevelopment bool
}

// hstsValue is sent on every response outside development.
const hstsValue = "max-age=31536000; includeSubDomains"

// Security sets the headers that matter for API clients: responses are
// typed JSON, never cached, and production clients stay on HTTPS.
// Browser framing and embedding policies are left out; no page is served.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			// Balances and keys must not be cached by proxies.
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			if !cfg.IsDevelopment {
				h.Set("Strict-Transport-Security", hstsValue)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize rejects bodies whose declared length exceeds maxBytes and
// caps streaming reads for the rest.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				writeJSONError(w, http.StatusRequestEntityTooLarge, `{"error":"Request body too large"}`)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
