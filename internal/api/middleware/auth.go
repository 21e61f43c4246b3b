package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/helix-works/recall/internal/api"
)

// APITokenAuth guards write endpoints with a single static token. An empty
// configured token disables the check (local development).
func APITokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			if provided == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					provided = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				api.Error(w, http.StatusUnauthorized, "invalid or missing API token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
