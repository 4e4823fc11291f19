package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"
	"go.uber.org/zap"
)

// Recovery converts a handler panic into a 500 response and logs the stack.
func Recovery(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Panic recovered",
						zap.String("request_id", GetRequestID(r.Context())),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Any("error", rec),
						zap.String("stack", string(debug.Stack())),
					)

					w.WriteHeader(http.StatusInternalServerError)
					render.JSON(w, r, map[string]interface{}{
						"error":   ErrorCodeInternal,
						"message": ErrorMessageInternal,
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
