package http

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"kaskelas/internal/http/respond"
)

// cronSecret gates the scheduler-triggered routes behind a shared secret
// header. An empty configured secret rejects everything rather than leaving
// the route open.
func cronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || r.Header.Get("X-Cron-Secret") != secret {
				respond.Error(w, http.StatusUnauthorized, "invalid cron secret")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerAuth verifies an HS256 bearer token. Tokens are issued elsewhere;
// this only checks the signature and standard claims.
func bearerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				respond.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			_, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
