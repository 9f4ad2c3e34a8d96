package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

const corsMaxAgeSeconds = 600

var (
	corsAllowMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	corsAllowHeaders = []string{"Authorization", "Content-Type", DefaultIdempotencyHeader, RequestIDHeader}
)

// CORS answers preflight requests and sets Access-Control headers for
// allowed origins. A "*" entry allows any origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins = append(origins, strings.TrimRight(origin, "/"))
	}

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: corsAllowMethods,
		AllowedHeaders: corsAllowHeaders,
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         corsMaxAgeSeconds,
	})
	return c.Handler
}
