// Package middleware provides HTTP middleware for the suggestion API.
package middleware

import (
	"encoding/json"
	"net/http"
	"os"
)

// errorResponse is the standard error response structure.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// APIKeyAuth returns middleware that validates API key authentication.
// If SUGGEST_API_KEY is not set, authentication is disabled (dev mode).
// The /health endpoint is always accessible without authentication. This
// gates the request-serving surface and is independent of the
// ADMIN_API_KEY gate on /ml/train and the /admin/* routes.
func APIKeyAuth(next http.Handler) http.Handler {
	apiKey := os.Getenv("SUGGEST_API_KEY")

	// If no API key configured, skip authentication (dev mode)
	if apiKey == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always allow health checks without auth
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		// Header only: query params land in access logs, browser history,
		// and referrer headers.
		key := r.Header.Get("X-Suggest-Api-Key")

		if key != apiKey {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errorResponse{
				Error: "unauthorized: invalid or missing API key",
				Code:  "AUTH_REQUIRED",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
