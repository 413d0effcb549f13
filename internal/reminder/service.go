package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kaskelas/internal/transaction"
	"kaskelas/internal/whatsapp"
)

type Repository interface {
	// CreateSchedule inserts a reminder row; a row that already exists for
	// the same (transaction, type, date) is left untouched.
	CreateSchedule(ctx context.Context, sched *Schedule) error

	// ListDueOn returns pending reminders scheduled for the given date with
	// their transaction, student and payment type joined.
	ListDueOn(ctx context.Context, date time.Time) ([]*Schedule, error)

	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error

	// MarkFailure bumps attempts and records the error; when cancel is true
	// the row also transitions to its terminal cancelled state.
	MarkFailure(ctx context.Context, id uuid.UUID, at time.Time, errMsg string, cancel bool) error

	CancelSchedule(ctx context.Context, id uuid.UUID) error
	CancelForTransaction(ctx context.Context, transactionID uuid.UUID) error
}

// Sender delivers a rendered reminder.
type Sender interface {
	SendLinked(ctx context.Context, phone, text string, studentID, transactionID *uuid.UUID) *whatsapp.SendResult
}

// LinkBuilder synthesizes a payment URL when a transaction has none persisted.
type LinkBuilder interface {
	PaymentURL(orderID string, amount int64) string
}

type Service struct {
	repo      Repository
	gateway   Sender
	links     LinkBuilder
	templates Templates
}

func NewService(repo Repository, gateway Sender, links LinkBuilder, templates Templates) *Service {
	return &Service{repo: repo, gateway: gateway, links: links, templates: templates}
}

// PlanParams describes one transaction's reminder cycle.
type PlanParams struct {
	TransactionID  uuid.UUID
	DueDate        time.Time
	ReminderDays   []int
	EscalationDays int
}

// cycleRows derives the reminder rows for one due date: one before_due row at
// due-d per offset, one on_due row at due, one escalation row after due.
func cycleRows(p PlanParams) []*Schedule {
	rows := make([]*Schedule, 0, len(p.ReminderDays)+2)

	for _, d := range p.ReminderDays {
		rows = append(rows, &Schedule{
			TransactionID: p.TransactionID,
			Type:          TypeBeforeDue,
			ScheduledDate: p.DueDate.AddDate(0, 0, -d),
			Status:        StatusPending,
		})
	}

	rows = append(rows, &Schedule{
		TransactionID: p.TransactionID,
		Type:          TypeOnDue,
		ScheduledDate: p.DueDate,
		Status:        StatusPending,
	})

	if p.EscalationDays > 0 {
		rows = append(rows, &Schedule{
			TransactionID: p.TransactionID,
			Type:          TypeEscalation,
			ScheduledDate: p.DueDate.AddDate(0, 0, p.EscalationDays),
			Status:        StatusPending,
		})
	}

	return rows
}

// PlanForTransaction creates the transaction's reminder cycle. Re-planning is
// safe: existing rows are not duplicated.
func (s *Service) PlanForTransaction(ctx context.Context, p PlanParams) error {
	for _, row := range cycleRows(p) {
		if err := s.repo.CreateSchedule(ctx, row); err != nil {
			return fmt.Errorf("planning %s reminder for transaction %s: %w", row.Type, p.TransactionID, err)
		}
	}

	return nil
}

// CancelForTransaction cancels all still-pending reminders of a transaction,
// used once its payment completes.
func (s *Service) CancelForTransaction(ctx context.Context, transactionID uuid.UUID) error {
	return s.repo.CancelForTransaction(ctx, transactionID)
}

// ProcessResult aggregates one processing run.
type ProcessResult struct {
	Processed int
	Sent      int
	Failed    int
}

// ProcessDue sends every reminder scheduled for the given date. Failures are
// per-row: the row keeps its pending status (retried by the next daily run)
// until MaxAttempts is reached, at which point it is cancelled. Rows whose
// transaction has already been paid are cancelled without sending.
func (s *Service) ProcessDue(ctx context.Context, date time.Time) (*ProcessResult, error) {
	reminders, err := s.repo.ListDueOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("listing reminders due on %s: %w", date.Format(time.DateOnly), err)
	}

	result := &ProcessResult{Processed: len(reminders)}

	for _, r := range reminders {
		tx := r.Transaction
		if tx == nil || tx.Student == nil || tx.PaymentType == nil {
			slog.Warn("reminder has no joined transaction, skipping", "reminder_id", r.ID)
			continue
		}

		if tx.Status == transaction.StatusCompleted || tx.Status == transaction.StatusCancelled {
			if err := s.repo.CancelSchedule(ctx, r.ID); err != nil {
				slog.Error("failed to cancel reminder for settled transaction", "reminder_id", r.ID, "error", err)
			}
			continue
		}

		if tx.Student.ParentPhone == "" {
			slog.Warn("student has no parent phone, skipping reminder",
				"reminder_id", r.ID, "student_id", tx.StudentID)
			continue
		}

		msg := s.renderMessage(r, tx)

		res := s.gateway.SendLinked(ctx, tx.Student.ParentPhone, msg, &tx.StudentID, &tx.ID)
		if res.Success {
			if err := s.repo.MarkSent(ctx, r.ID, time.Now()); err != nil {
				slog.Error("failed to mark reminder sent", "reminder_id", r.ID, "error", err)
			}

			result.Sent++

			continue
		}

		cancel := r.Attempts+1 >= MaxAttempts
		if err := s.repo.MarkFailure(ctx, r.ID, time.Now(), res.Error, cancel); err != nil {
			slog.Error("failed to record reminder failure", "reminder_id", r.ID, "error", err)
		}

		if cancel {
			slog.Warn("reminder reached attempt cap, cancelling",
				"reminder_id", r.ID, "attempts", r.Attempts+1)
		}

		result.Failed++
	}

	return result, nil
}

func (s *Service) renderMessage(r *Schedule, tx *transaction.Transaction) string {
	paymentURL := tx.PaymentURL
	if paymentURL == "" {
		paymentURL = s.links.PaymentURL(tx.OrderID, tx.Amount)
	}

	f := Fields{
		StudentName:     tx.Student.Name,
		Amount:          tx.Amount,
		OrderID:         tx.OrderID,
		PaymentURL:      paymentURL,
		PaymentTypeName: tx.PaymentType.Name,
	}

	due := FormatDate(tx.DueDate)

	switch r.Type {
	case TypeBeforeDue:
		return s.templates.BeforeDue(f, due)
	case TypeEscalation:
		return s.templates.Escalation(f, due)
	default:
		return s.templates.OnDue(f)
	}
}
