package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/remitflow-backend/pkg/config"
)

// CORS lets the configured back-office origins call the API with bearer
// tokens and read the request id and replay markers off responses.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, replayedHeader, "Retry-After"},
		MaxAge:         600,
	})
}
