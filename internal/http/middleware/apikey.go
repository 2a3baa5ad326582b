package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const apiKeyHeader = "X-API-Key"

// RequireBotKey authenticates the chat transport with a pre-shared API key.
// Only the bcrypt hash of the key lives in configuration.
func RequireBotKey(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				http.Error(w, "transport key not configured", http.StatusServiceUnavailable)
				return
			}
			key := r.Header.Get(apiKeyHeader)
			if key == "" {
				http.Error(w, "missing api key", http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
