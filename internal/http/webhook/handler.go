// Package webhook receives payment notifications from the provider and
// settles the matching obligation: complete it exactly once, drop its pending
// reminders, refresh the day's balance, and thank the parent.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kaskelas/internal/balance"
	"kaskelas/internal/http/respond"
	"kaskelas/internal/payment"
	"kaskelas/internal/reminder"
	"kaskelas/internal/transaction"
	"kaskelas/internal/whatsapp"
)

type Transactions interface {
	GetByOrderID(ctx context.Context, orderID string) (*transaction.Transaction, error)
	Complete(ctx context.Context, orderID, method string, completedAt time.Time) (*transaction.Transaction, error)
}

// Validator checks a payload against the stored transaction and the
// configured payment project.
type Validator interface {
	ValidatePayload(p payment.WebhookPayload, orderID string, amount int64) error
}

type Reminders interface {
	CancelForTransaction(ctx context.Context, transactionID uuid.UUID) error
}

type Balances interface {
	Recompute(ctx context.Context, date time.Time) (*balance.Day, error)
}

type Sender interface {
	SendLinked(ctx context.Context, phone, text string, studentID, transactionID *uuid.UUID) *whatsapp.SendResult
}

type Handler struct {
	transactions Transactions
	payments     Validator
	reminders    Reminders
	balances     Balances
	gateway      Sender
	templates    reminder.Templates
}

func NewHandler(
	transactions Transactions,
	payments Validator,
	reminders Reminders,
	balances Balances,
	gateway Sender,
	templates reminder.Templates,
) *Handler {
	return &Handler{
		transactions: transactions,
		payments:     payments,
		reminders:    reminders,
		balances:     balances,
		gateway:      gateway,
		templates:    templates,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/pakasir", h.pakasir)
}

func (h *Handler) pakasir(w http.ResponseWriter, r *http.Request) {
	var payload payment.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if payload.OrderID == "" {
		respond.Error(w, http.StatusBadRequest, "order_id is required")
		return
	}

	slog.Info("webhook received",
		"order_id", payload.OrderID,
		"status", payload.Status,
		"amount", payload.Amount,
	)

	tx, err := h.transactions.GetByOrderID(r.Context(), payload.OrderID)
	if err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "transaction not found")
			return
		}

		respond.Error(w, http.StatusInternalServerError, "failed to load transaction")

		return
	}

	if err := h.payments.ValidatePayload(payload, tx.OrderID, tx.Amount); err != nil {
		slog.Warn("webhook payload mismatch", "order_id", payload.OrderID, "error", err)
		respond.Error(w, http.StatusBadRequest, "payload does not match transaction")

		return
	}

	if payload.Status != "completed" {
		respond.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "ignored status " + payload.Status,
		})

		return
	}

	completedAt := time.Now()
	if payload.CompletedAt != nil {
		completedAt = *payload.CompletedAt
	}

	completed, err := h.transactions.Complete(r.Context(), payload.OrderID, payload.PaymentMethod, completedAt)

	switch {
	case errors.Is(err, transaction.ErrAlreadyCompleted):
		// Duplicate delivery: ack without sending a second confirmation.
		respond.JSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"message":        "transaction already completed",
			"transaction_id": completed.ID,
		})

		return
	case errors.Is(err, transaction.ErrNotPending):
		respond.Error(w, http.StatusConflict, "transaction cannot be completed")
		return
	case err != nil:
		respond.Error(w, http.StatusInternalServerError, "failed to complete transaction")
		return
	}

	if err := h.reminders.CancelForTransaction(r.Context(), completed.ID); err != nil {
		slog.Error("failed to cancel reminders", "transaction_id", completed.ID, "error", err)
	}

	day := time.Date(completedAt.Year(), completedAt.Month(), completedAt.Day(), 0, 0, 0, 0, completedAt.Location())
	if _, err := h.balances.Recompute(r.Context(), day); err != nil {
		slog.Error("failed to recompute balance", "date", day.Format(time.DateOnly), "error", err)
	}

	h.sendConfirmation(r.Context(), completed)

	respond.JSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        "webhook processed successfully",
		"transaction_id": completed.ID,
	})
}

// sendConfirmation delivers the one-shot thank-you message. A send failure is
// already audited by the gateway and never fails the webhook.
func (h *Handler) sendConfirmation(ctx context.Context, tx *transaction.Transaction) {
	if tx.Student == nil || tx.Student.ParentPhone == "" {
		slog.Warn("no parent phone for confirmation", "transaction_id", tx.ID)
		return
	}

	fields := reminder.Fields{
		StudentName: tx.Student.Name,
		Amount:      tx.Amount,
		OrderID:     tx.OrderID,
	}
	if tx.PaymentType != nil {
		fields.PaymentTypeName = tx.PaymentType.Name
	}

	text := h.templates.Confirmation(fields, tx.PaymentMethod)

	if res := h.gateway.SendLinked(ctx, tx.Student.ParentPhone, text, &tx.StudentID, &tx.ID); !res.Success {
		slog.Error("failed to send confirmation", "transaction_id", tx.ID, "error", res.Error)
	}
}
