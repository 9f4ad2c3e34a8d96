package middleware

import (
	"net/http"

	apperrors "ticketing/pkg/errors"
	httputil "ticketing/pkg/http"
	"ticketing/pkg/logger"
)

// MaxRequestSize rejects bodies with a declared length above limit and
// caps the rest with http.MaxBytesReader.
func MaxRequestSize(limit int64, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				log.Warn("Request body too large",
					"request_id", RequestIDFromContext(r.Context()),
					"content_length", r.ContentLength,
					"limit", limit,
				)
				if err := httputil.WriteError(w, apperrors.PayloadTooLarge(limit)); err != nil {
					log.Error("failed to write error response", "middleware", "MaxRequestSize", "error", err)
				}
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
