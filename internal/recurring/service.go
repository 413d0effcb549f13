// Package recurring turns recurring payment-type settings into monthly
// obligations: on each type's configured day of the month, every student
// without a transaction for the current cycle gets one, a payment link, and a
// planned reminder cycle.
package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kaskelas/internal/reminder"
	"kaskelas/internal/transaction"
)

// Setting configures automatic generation for one payment type. DayOfMonth is
// capped at 28 so every month has the generation day.
type Setting struct {
	ID             uuid.UUID
	PaymentTypeID  uuid.UUID
	IsActive       bool
	DayOfMonth     int
	ReminderDays   []int
	EscalationDays int
	CreatedAt      time.Time
	UpdatedAt      *time.Time

	PaymentType *transaction.PaymentType
}

type Repository interface {
	ListActiveForDay(ctx context.Context, day int) ([]*Setting, error)
	GetSetting(ctx context.Context, paymentTypeID uuid.UUID) (*Setting, error)
	ListStudents(ctx context.Context) ([]*transaction.Student, error)
}

type Transactions interface {
	Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error)
	HasForCycle(ctx context.Context, studentID, paymentTypeID uuid.UUID, from, to time.Time) (bool, error)
	AttachPaymentURL(ctx context.Context, id uuid.UUID, url string) error
}

// Planner creates the reminder cycle for a freshly generated transaction.
type Planner interface {
	PlanForTransaction(ctx context.Context, p reminder.PlanParams) error
}

type LinkBuilder interface {
	PaymentURL(orderID string, amount int64) string
}

type Service struct {
	repo         Repository
	transactions Transactions
	planner      Planner
	links        LinkBuilder
}

func NewService(repo Repository, transactions Transactions, planner Planner, links LinkBuilder) *Service {
	return &Service{repo: repo, transactions: transactions, planner: planner, links: links}
}

// Result aggregates one generation run. Errors holds per-payment-type
// failures; a failing type never blocks its siblings.
type Result struct {
	Generated int
	Errors    []string

	// Transactions created by this run.
	Transactions []*transaction.Transaction
}

// GenerateDueToday generates obligations for every active setting whose
// day-of-month is today. Safe to re-run on the same day: students who already
// have a transaction for the cycle are skipped.
func (s *Service) GenerateDueToday(ctx context.Context, now time.Time) (*Result, error) {
	settings, err := s.repo.ListActiveForDay(ctx, now.Day())
	if err != nil {
		return nil, fmt.Errorf("listing recurring settings for day %d: %w", now.Day(), err)
	}

	result := &Result{}

	for _, setting := range settings {
		generated, err := s.generateForSetting(ctx, setting, now)
		if err != nil {
			name := setting.PaymentTypeID.String()
			if setting.PaymentType != nil {
				name = setting.PaymentType.Name
			}

			result.Errors = append(result.Errors, fmt.Sprintf("failed to generate for %s: %v", name, err))

			continue
		}

		result.Generated += len(generated)
		result.Transactions = append(result.Transactions, generated...)
	}

	return result, nil
}

// Generate runs generation for one payment type regardless of today's date.
func (s *Service) Generate(ctx context.Context, paymentTypeID uuid.UUID, now time.Time) (*Result, error) {
	setting, err := s.repo.GetSetting(ctx, paymentTypeID)
	if err != nil {
		return nil, fmt.Errorf("loading recurring setting: %w", err)
	}

	generated, err := s.generateForSetting(ctx, setting, now)
	if err != nil {
		return nil, err
	}

	return &Result{Generated: len(generated), Transactions: generated}, nil
}

func (s *Service) generateForSetting(ctx context.Context, setting *Setting, now time.Time) ([]*transaction.Transaction, error) {
	if setting.PaymentType == nil {
		return nil, fmt.Errorf("setting %s has no payment type", setting.ID)
	}

	students, err := s.repo.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing students: %w", err)
	}

	cycleStart, cycleEnd := monthBounds(now)
	dueDate := lastOfMonth(now)

	var created []*transaction.Transaction

	for _, student := range students {
		exists, err := s.transactions.HasForCycle(ctx, student.ID, setting.PaymentTypeID, cycleStart, cycleEnd)
		if err != nil {
			return created, fmt.Errorf("checking cycle for student %s: %w", student.ID, err)
		}

		if exists {
			continue
		}

		tx, err := s.transactions.Create(ctx, transaction.CreateParams{
			StudentID:     student.ID,
			PaymentTypeID: setting.PaymentTypeID,
			Amount:        setting.PaymentType.Amount,
			DueDate:       dueDate,
		})
		if err != nil {
			return created, fmt.Errorf("creating transaction for student %s: %w", student.ID, err)
		}

		url := s.links.PaymentURL(tx.OrderID, tx.Amount)
		if err := s.transactions.AttachPaymentURL(ctx, tx.ID, url); err != nil {
			return created, fmt.Errorf("attaching payment url to %s: %w", tx.OrderID, err)
		}

		tx.PaymentURL = url
		tx.Student = student
		tx.PaymentType = setting.PaymentType

		err = s.planner.PlanForTransaction(ctx, reminder.PlanParams{
			TransactionID:  tx.ID,
			DueDate:        dueDate,
			ReminderDays:   setting.ReminderDays,
			EscalationDays: setting.EscalationDays,
		})
		if err != nil {
			// The obligation exists either way; reminders can be re-planned.
			slog.Error("failed to plan reminders", "transaction_id", tx.ID, "error", err)
		}

		created = append(created, tx)
	}

	return created, nil
}

// monthBounds returns the half-open [first of month, first of next month)
// window that defines a billing cycle.
func monthBounds(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first, first.AddDate(0, 1, 0)
}

func lastOfMonth(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first.AddDate(0, 1, -1)
}
