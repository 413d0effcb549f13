package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kaskelas/internal/reminder"
	"kaskelas/internal/transaction"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateSchedule inserts one reminder row. The unique index on
// (transaction_id, reminder_type, scheduled_date) makes re-planning a no-op.
func (s *Store) CreateSchedule(ctx context.Context, sched *reminder.Schedule) error {
	query := `
		INSERT INTO reminder_schedule (transaction_id, reminder_type, scheduled_date, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, 0, NOW())
		ON CONFLICT (transaction_id, reminder_type, scheduled_date) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		sched.TransactionID,
		sched.Type,
		sched.ScheduledDate,
		sched.Status,
	)
	if err != nil {
		return fmt.Errorf("creating reminder schedule: %w", err)
	}

	return nil
}

func (s *Store) ListDueOn(ctx context.Context, date time.Time) ([]*reminder.Schedule, error) {
	query := `
		SELECT r.id, r.transaction_id, r.reminder_type, r.scheduled_date, r.status,
		       r.attempts, r.last_attempt_at, r.sent_at, r.error_message, r.created_at,
		       t.id, t.student_id, t.payment_type_id, t.amount, t.order_id, t.status,
		       t.payment_url, t.due_date,
		       st.name, st.parent_phone, p.name
		FROM reminder_schedule r
		JOIN transactions t ON r.transaction_id = t.id
		JOIN students st ON t.student_id = st.id
		JOIN payment_types p ON t.payment_type_id = p.id
		WHERE r.status = $1 AND r.scheduled_date = $2
		ORDER BY r.scheduled_date, r.created_at
	`

	rows, err := s.db.QueryContext(ctx, query, reminder.StatusPending, date)
	if err != nil {
		return nil, fmt.Errorf("listing due reminders: %w", err)
	}
	defer rows.Close()

	var scheds []*reminder.Schedule

	for rows.Next() {
		var (
			sched       reminder.Schedule
			rType       string
			rStatus     string
			errMsg      sql.NullString
			tx          transaction.Transaction
			txStatus    string
			payURL      sql.NullString
			student     transaction.Student
			parentPhone sql.NullString
			paymentType transaction.PaymentType
		)

		if err := rows.Scan(
			&sched.ID, &sched.TransactionID, &rType, &sched.ScheduledDate, &rStatus,
			&sched.Attempts, &sched.LastAttemptAt, &sched.SentAt, &errMsg, &sched.CreatedAt,
			&tx.ID, &tx.StudentID, &tx.PaymentTypeID, &tx.Amount, &tx.OrderID, &txStatus,
			&payURL, &tx.DueDate,
			&student.Name, &parentPhone, &paymentType.Name,
		); err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}

		sched.Type = reminder.Type(rType)
		sched.Status = reminder.Status(rStatus)
		sched.ErrorMessage = errMsg.String

		tx.Status = transaction.Status(txStatus)
		tx.PaymentURL = payURL.String

		student.ID = tx.StudentID
		student.ParentPhone = parentPhone.String
		tx.Student = &student

		paymentType.ID = tx.PaymentTypeID
		paymentType.Amount = tx.Amount
		tx.PaymentType = &paymentType

		sched.Transaction = &tx
		scheds = append(scheds, &sched)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reminders: %w", err)
	}

	return scheds, nil
}

func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE reminder_schedule
		SET status = $1, sent_at = $2, attempts = attempts + 1
		WHERE id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, reminder.StatusSent, sentAt, id); err != nil {
		return fmt.Errorf("marking reminder sent: %w", err)
	}

	return nil
}

func (s *Store) MarkFailure(ctx context.Context, id uuid.UUID, at time.Time, errMsg string, cancel bool) error {
	status := reminder.StatusPending
	if cancel {
		status = reminder.StatusCancelled
	}

	query := `
		UPDATE reminder_schedule
		SET attempts = attempts + 1, last_attempt_at = $1, error_message = $2, status = $3
		WHERE id = $4
	`

	if _, err := s.db.ExecContext(ctx, query, at, errMsg, status, id); err != nil {
		return fmt.Errorf("recording reminder failure: %w", err)
	}

	return nil
}

func (s *Store) CancelSchedule(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE reminder_schedule SET status = $1 WHERE id = $2`

	if _, err := s.db.ExecContext(ctx, query, reminder.StatusCancelled, id); err != nil {
		return fmt.Errorf("cancelling reminder: %w", err)
	}

	return nil
}

func (s *Store) CancelForTransaction(ctx context.Context, transactionID uuid.UUID) error {
	query := `
		UPDATE reminder_schedule
		SET status = $1
		WHERE transaction_id = $2 AND status = $3
	`

	_, err := s.db.ExecContext(ctx, query, reminder.StatusCancelled, transactionID, reminder.StatusPending)
	if err != nil {
		return fmt.Errorf("cancelling reminders for transaction: %w", err)
	}

	return nil
}
