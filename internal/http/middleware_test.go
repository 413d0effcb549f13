package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protectedRouter(mw func(http.Handler) http.Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(mw)
	router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return router
}

func TestCronSecret(t *testing.T) {
	router := protectedRouter(cronSecret("s3cret"))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid secret", header: "s3cret", want: http.StatusOK},
		{name: "wrong secret", header: "nope", want: http.StatusUnauthorized},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			if tt.header != "" {
				req.Header.Set("X-Cron-Secret", tt.header)
			}

			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCronSecret_EmptyConfiguredSecretRejectsAll(t *testing.T) {
	router := protectedRouter(cronSecret(""))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Cron-Secret", "")

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func signToken(t *testing.T, secret string, method jwt.SigningMethod) string {
	t.Helper()

	token := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	return signed
}

func TestBearerAuth(t *testing.T) {
	router := protectedRouter(bearerAuth("jwt-secret"))

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "valid token", token: signToken(t, "jwt-secret", jwt.SigningMethodHS256), want: http.StatusOK},
		{name: "wrong secret", token: signToken(t, "other-secret", jwt.SigningMethodHS256), want: http.StatusUnauthorized},
		{name: "garbage token", token: "not.a.jwt", want: http.StatusUnauthorized},
		{name: "no token", token: "", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestBearerAuth_RejectsExpiredToken(t *testing.T) {
	router := protectedRouter(bearerAuth("jwt-secret"))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("jwt-secret"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
