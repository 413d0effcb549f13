package cron

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kaskelas/internal/http/respond"
	"kaskelas/internal/orchestrator"
)

// Runner executes the daily sequence and reports what happened.
type Runner interface {
	Run(ctx context.Context, now time.Time) *orchestrator.Summary
}

type Handler struct {
	daily Runner
}

func NewHandler(daily Runner) *Handler {
	return &Handler{daily: daily}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/daily", h.runDaily)
}

// runDaily triggers the daily job. A partially failed run still returns its
// summary, with 207 signalling the external scheduler to alert.
func (h *Handler) runDaily(w http.ResponseWriter, r *http.Request) {
	summary := h.daily.Run(r.Context(), time.Now())

	status := http.StatusOK
	if len(summary.Errors) > 0 {
		status = http.StatusMultiStatus
	}

	respond.JSON(w, status, summary)
}
