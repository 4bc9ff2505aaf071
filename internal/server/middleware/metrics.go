package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/leslieo2/go-probe/internal/observability"
)

// MetricsMiddleware records request count, duration, response size and the
// in-flight gauge. It must wrap the ServeMux directly so the matched route
// pattern is visible after the handler returns; unmatched requests are
// recorded under the catch-all pattern. A panicking handler is recorded as
// a 500 unless it already wrote a status, and the panic is passed on.
func MetricsMiddleware(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.ActiveConnections.Inc()
			defer m.ActiveConnections.Dec()

			wrapped := NewResponseWriter(w)
			defer func() {
				status := wrapped.StatusCode()
				rec := recover()
				if rec != nil && !wrapped.Written() {
					status = http.StatusInternalServerError
				}
				m.RecordRequest(r.Method, routeLabel(r), status, time.Since(start), wrapped.BytesWritten())
				if rec != nil {
					panic(rec)
				}
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

// routeLabel strips the method from the mux pattern, "GET /ready" -> "/ready"
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}
