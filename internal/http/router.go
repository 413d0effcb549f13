package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"kaskelas/internal/http/broadcast"
	"kaskelas/internal/http/cron"
	"kaskelas/internal/http/webhook"
)

type Secrets struct {
	Cron string
	JWT  string
}

func New(
	cronV1 *cron.Handler,
	webhookV1 *webhook.Handler,
	broadcastV1 *broadcast.Handler,
	secrets Secrets,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Cron-Secret"},
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Route("/cron", func(r chi.Router) {
		r.Use(cronSecret(secrets.Cron))
		cronV1.Routes(r)
	})

	router.Route("/webhook", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		webhookV1.Routes(r)
	})

	router.Route("/broadcast", func(r chi.Router) {
		r.Use(bearerAuth(secrets.JWT))
		broadcastV1.Routes(r)
	})

	return router
}
