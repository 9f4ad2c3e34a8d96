package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "ticketing/pkg/errors"
	httputil "ticketing/pkg/http"
	"ticketing/pkg/logger"
)

// Recovery converts a handler panic into a 500 error envelope. It sits
// outside RequestLogging, so the request id is read back from the response
// header rather than the context. http.ErrAbortHandler is re-raised.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				log.Error("Handler panicked",
					"request_id", w.Header().Get(RequestIDHeader),
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				appErr := apperrors.Internal("Internal server error", fmt.Errorf("panic: %v", rec))
				if err := httputil.WriteError(w, appErr); err != nil {
					log.Error("failed to write error response", "middleware", "Recovery", "error", err)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
