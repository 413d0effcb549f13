// Package broadcast is the operator-facing batch messaging API. It renders
// template placeholders per recipient, hands the batch to the dispatcher, and
// exposes queue and history views.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kaskelas/internal/dispatch"
	"kaskelas/internal/http/respond"
	"kaskelas/internal/recurring"
	"kaskelas/internal/reminder"
	"kaskelas/internal/whatsapp"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// History reads and writes the audit side of broadcasts.
type History interface {
	ListRecent(ctx context.Context, limit int) ([]*whatsapp.Log, error)
	RecordBroadcast(ctx context.Context, totalRecipients, delaySeconds int, paymentTypeID *uuid.UUID) error
}

// Settings resolves a payment type for the {jenis_pembayaran} placeholder.
type Settings interface {
	GetSetting(ctx context.Context, paymentTypeID uuid.UUID) (*recurring.Setting, error)
}

type Handler struct {
	queue        dispatch.Dispatcher
	history      History
	settings     Settings
	defaultDelay int
}

func NewHandler(queue dispatch.Dispatcher, history History, settings Settings, defaultDelay int) *Handler {
	return &Handler{
		queue:        queue,
		history:      history,
		settings:     settings,
		defaultDelay: defaultDelay,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/send", h.send)
	r.Get("/status", h.status)
	r.Get("/status/{jobID}", h.jobStatus)
	r.Get("/history", h.listHistory)
}

type messageItem struct {
	PhoneNumber string     `json:"phoneNumber"`
	Message     string     `json:"message,omitempty"`
	StudentID   *uuid.UUID `json:"studentId,omitempty"`
	StudentName string     `json:"studentName,omitempty"`
	Amount      int64      `json:"amount,omitempty"`
	OrderID     string     `json:"orderId,omitempty"`
	PaymentURL  string     `json:"paymentUrl,omitempty"`
}

type sendRequest struct {
	Messages        []messageItem `json:"messages"`
	DelaySeconds    int           `json:"delaySeconds"`
	MessageTemplate string        `json:"messageTemplate,omitempty"`
	PaymentTypeID   *uuid.UUID    `json:"paymentTypeId,omitempty"`
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Messages) == 0 {
		respond.Error(w, http.StatusBadRequest, "messages array is required")
		return
	}

	if req.DelaySeconds == 0 {
		req.DelaySeconds = h.defaultDelay
	}

	delay := dispatch.ClampDelaySeconds(req.DelaySeconds)

	paymentTypeName := ""
	if req.PaymentTypeID != nil {
		setting, err := h.settings.GetSetting(r.Context(), *req.PaymentTypeID)
		if err != nil {
			slog.Error("failed to load payment type", "payment_type_id", req.PaymentTypeID, "error", err)
		} else if setting.PaymentType != nil {
			paymentTypeName = setting.PaymentType.Name
		}
	}

	msgs := make([]dispatch.Message, 0, len(req.Messages))
	for _, item := range req.Messages {
		text := item.Message
		if text == "" {
			text = req.MessageTemplate
		}

		if req.MessageTemplate != "" || paymentTypeName != "" {
			text = reminder.Render(text, reminder.Fields{
				StudentName:     item.StudentName,
				Amount:          item.Amount,
				OrderID:         item.OrderID,
				PaymentURL:      item.PaymentURL,
				PaymentTypeName: paymentTypeName,
			})
		}

		msgs = append(msgs, dispatch.Message{
			PhoneNumber: item.PhoneNumber,
			Message:     text,
			StudentID:   item.StudentID,
			StudentName: item.StudentName,
		})
	}

	result, err := h.queue.Enqueue(r.Context(), msgs, delay)
	if err != nil {
		slog.Error("failed to enqueue broadcast", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to send broadcast")

		return
	}

	if err := h.history.RecordBroadcast(r.Context(), len(msgs), delay, req.PaymentTypeID); err != nil {
		slog.Error("failed to record broadcast", "error", err)
	}

	if !result.Queued {
		respond.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("%d messages sent directly", len(result.Outcomes)),
			"results": result.Outcomes,
		})

		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      fmt.Sprintf("%d messages queued successfully", len(result.Jobs)),
		"delaySeconds": delay,
		"jobs":         result.Jobs,
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.queue.Status(r.Context())
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to get queue status")
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  status,
	})
}

func (h *Handler) jobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.JobStatus(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, dispatch.ErrJobNotFound) {
			respond.Error(w, http.StatusNotFound, "job not found")
			return
		}

		respond.Error(w, http.StatusInternalServerError, "failed to get job status")

		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"job":     job,
	})
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = min(n, maxHistoryLimit)
		}
	}

	logs, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to get broadcast history")
		return
	}

	if logs == nil {
		logs = []*whatsapp.Log{}
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    logs,
	})
}
