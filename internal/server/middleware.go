package server

import (
	"net/http"

	"github.com/leslieo2/go-probe/internal/constants"
	"github.com/leslieo2/go-probe/internal/server/middleware"
)

// applyMiddleware applies the complete middleware chain to the handler
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Apply middleware chain in reverse order

	// Metrics must wrap the mux directly to see the matched pattern
	if s.config.Observability.Metrics.HTTP {
		handler = middleware.MetricsMiddleware(s.metrics)(handler)
	}

	// Request size limit middleware
	handler = middleware.RequestSizeLimitMiddleware(s.config.Server.MaxRequestSize)(handler)

	// Rate limiting, probe paths excluded
	handler = s.rateLimiter.Middleware(handler)

	// CORS middleware
	if s.config.Security.CORS.Enabled {
		handler = middleware.NewCORSMiddleware(s.config.Security.CORS).Handler(handler)
	}

	hstsMaxAge := 0
	if s.config.TLS.Enabled {
		hstsMaxAge = constants.HSTSMaxAge
	}
	handler = middleware.SecurityHeadersMiddleware(hstsMaxAge)(handler)

	handler = middleware.RecoveryMiddleware(s.logger.Logger)(handler)

	// Logging middleware
	handler = middleware.LoggingMiddleware(s.logger.Logger, s.probePaths()...)(handler)

	handler = middleware.RequestIDMiddleware(handler)

	return handler
}
