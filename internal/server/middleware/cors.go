package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/leslieo2/go-probe/internal/config"
	"github.com/leslieo2/go-probe/internal/constants"
)

// CORSMiddleware applies the configured cross-origin policy
type CORSMiddleware struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// NewCORSMiddleware creates a new CORS middleware
func NewCORSMiddleware(cfg config.CORSConfig) *CORSMiddleware {
	return &CORSMiddleware{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed
func (c *CORSMiddleware) allowOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == origin {
			return origin
		}
		if allowed == "*" {
			// a wildcard cannot be combined with credentials
			if c.AllowCredentials {
				return origin
			}
			return "*"
		}
	}
	return ""
}

// Handler returns the CORS middleware handler
func (c *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get(constants.HeaderOrigin)
		allowed := c.allowOrigin(origin)

		if allowed != "" {
			h := w.Header()
			h.Set(constants.HeaderAccessControlAllowOrigin, allowed)
			if allowed != "*" {
				h.Add("Vary", constants.HeaderOrigin)
			}
			if len(c.AllowedMethods) > 0 {
				h.Set(constants.HeaderAccessControlAllowMethods, strings.Join(c.AllowedMethods, ", "))
			}
			if len(c.AllowedHeaders) > 0 {
				h.Set(constants.HeaderAccessControlAllowHeaders, strings.Join(c.AllowedHeaders, ", "))
			}
			if c.AllowCredentials {
				h.Set(constants.HeaderAccessControlAllowCredentials, "true")
			}
			if c.MaxAge > 0 {
				h.Set(constants.HeaderAccessControlMaxAge, strconv.Itoa(c.MaxAge))
			}
		}

		// Preflight requests never reach the handlers
		if r.Method == constants.MethodOPTIONS && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
