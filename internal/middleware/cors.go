package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS only answers for allowedOrigin. Credentials are never allowed together
// with the "*" wildcard.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: allowedOrigin != "*",
		MaxAge:           300,
	})
}
