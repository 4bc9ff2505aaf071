package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/leslieo2/go-probe/internal/constants"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a handler panic into a JSON 500 response. The
// panic value and stack are logged, never sent to the client.
func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := NewResponseWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Panic in handler",
					zap.String("error", fmt.Sprint(rec)),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", GetRequestID(r.Context())),
					zap.ByteString("stack", debug.Stack()),
				)

				if wrapped.Written() {
					return
				}
				wrapped.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
				wrapped.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(wrapped).Encode(map[string]string{
					"error":   "Internal Server Error",
					"message": "An unexpected error occurred",
				})
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
