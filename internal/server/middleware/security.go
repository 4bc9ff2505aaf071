package middleware

import (
	"fmt"
	"net/http"
)

// SecurityHeadersMiddleware sets the response headers every probe response
// carries. Probe answers are point-in-time, so caching is disabled.
// hstsMaxAge > 0 also sets Strict-Transport-Security, which only makes
// sense when serving over TLS.
func SecurityHeadersMiddleware(hstsMaxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Cache-Control", "no-store")
			if hstsMaxAge > 0 {
				h.Set("Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", hstsMaxAge))
			}

			next.ServeHTTP(w, r)
		})
	}
}
