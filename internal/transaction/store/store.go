package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kaskelas/internal/transaction"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectTransactionColumns = `
	t.id, t.student_id, t.payment_type_id, t.amount, t.order_id, t.status,
	t.payment_url, t.payment_method, t.due_date, t.completed_at, t.created_at, t.updated_at,
	s.name, s.parent_phone, p.name, p.amount, p.is_recurring
`

// scanTransaction reads a transaction row joined with its student and payment
// type. Column order must match selectTransactionColumns.
func scanTransaction(s scanner) (*transaction.Transaction, error) {
	var (
		tx          transaction.Transaction
		statusStr   string
		payURL      sql.NullString
		payMethod   sql.NullString
		student     transaction.Student
		paymentType transaction.PaymentType
		parentPhone sql.NullString
	)

	if err := s.Scan(
		&tx.ID, &tx.StudentID, &tx.PaymentTypeID, &tx.Amount, &tx.OrderID, &statusStr,
		&payURL, &payMethod, &tx.DueDate, &tx.CompletedAt, &tx.CreatedAt, &tx.UpdatedAt,
		&student.Name, &parentPhone, &paymentType.Name, &paymentType.Amount, &paymentType.IsRecurring,
	); err != nil {
		return nil, err
	}

	tx.Status = transaction.Status(statusStr)
	tx.PaymentURL = payURL.String
	tx.PaymentMethod = payMethod.String

	student.ID = tx.StudentID
	student.ParentPhone = parentPhone.String
	tx.Student = &student

	paymentType.ID = tx.PaymentTypeID
	tx.PaymentType = &paymentType

	return &tx, nil
}

const transactionJoins = `
	FROM transactions t
	JOIN students s ON t.student_id = s.id
	JOIN payment_types p ON t.payment_type_id = p.id
`

func (s *Store) CreateTransaction(ctx context.Context, tx *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (student_id, payment_type_id, amount, order_id, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		tx.StudentID,
		tx.PaymentTypeID,
		tx.Amount,
		tx.OrderID,
		tx.Status,
		tx.DueDate,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating transaction: %w", err)
	}

	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + transactionJoins + `WHERE t.id = $1`

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return tx, nil
}

func (s *Store) GetByOrderID(ctx context.Context, orderID string) (*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + transactionJoins + `WHERE t.order_id = $1`

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction by order id: %w", err)
	}

	return tx, nil
}

func (s *Store) UpdatePaymentURL(ctx context.Context, id uuid.UUID, url string) error {
	query := `
		UPDATE transactions
		SET payment_url = $1, updated_at = NOW()
		WHERE id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, url, id); err != nil {
		return fmt.Errorf("updating payment url: %w", err)
	}

	return nil
}

// CompletePending performs the status-guarded pending -> completed transition.
// The WHERE status = 'pending' clause is the idempotency boundary for
// duplicate webhook deliveries.
func (s *Store) CompletePending(ctx context.Context, orderID, method string, completedAt time.Time) (*transaction.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = $1, payment_method = $2, completed_at = $3, updated_at = NOW()
		WHERE order_id = $4 AND status = $5
		RETURNING id
	`

	var id uuid.UUID

	err := s.db.QueryRowContext(ctx, query,
		transaction.StatusCompleted, method, completedAt, orderID, transaction.StatusPending,
	).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("completing transaction: %w", err)
	}

	return s.GetTransaction(ctx, id)
}

func (s *Store) HasForCycle(ctx context.Context, studentID, paymentTypeID uuid.UUID, from, to time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE student_id = $1 AND payment_type_id = $2
			  AND status IN ($3, $4)
			  AND created_at >= $5 AND created_at <= $6
		)
	`

	var exists bool

	err := s.db.QueryRowContext(ctx, query,
		studentID, paymentTypeID,
		transaction.StatusPending, transaction.StatusCompleted,
		from, to,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking cycle: %w", err)
	}

	return exists, nil
}

func (s *Store) ListPending(ctx context.Context) ([]*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + transactionJoins + `
		WHERE t.status = $1
		ORDER BY t.created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, transaction.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("listing pending transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	return txs, nil
}
