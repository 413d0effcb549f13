package cron

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaskelas/internal/orchestrator"
)

type fakeRunner struct {
	summary *orchestrator.Summary
}

func (f *fakeRunner) Run(context.Context, time.Time) *orchestrator.Summary {
	return f.summary
}

func trigger(h *Handler) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	h.Routes(router)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/daily", nil)
	router.ServeHTTP(rec, req)

	return rec
}

func TestHandler_RunDaily(t *testing.T) {
	rec := trigger(NewHandler(&fakeRunner{summary: &orchestrator.Summary{
		Date:               "2025-03-10",
		RecurringGenerated: 12,
		RemindersSent:      7,
		RemindersFailed:    1,
		TotalReminders:     8,
	}}))

	assert.Equal(t, http.StatusOK, rec.Code)

	var summary orchestrator.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "2025-03-10", summary.Date)
	assert.Equal(t, 12, summary.RecurringGenerated)
	assert.Equal(t, 7, summary.RemindersSent)
	assert.Equal(t, 1, summary.RemindersFailed)
	assert.Equal(t, 8, summary.TotalReminders)
}

func TestHandler_RunDailyPartialFailure(t *testing.T) {
	rec := trigger(NewHandler(&fakeRunner{summary: &orchestrator.Summary{
		Date:   "2025-03-10",
		Errors: []string{"balance recompute: deadlock"},
	}}))

	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.Contains(t, rec.Body.String(), "deadlock")
}
