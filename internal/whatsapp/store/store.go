package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"kaskelas/internal/whatsapp"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InsertLog(ctx context.Context, log *whatsapp.Log) error {
	query := `
		INSERT INTO whatsapp_logs (student_id, transaction_id, phone_number, message, status, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		log.StudentID,
		log.TransactionID,
		log.PhoneNumber,
		log.Message,
		log.Status,
		log.Response,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting whatsapp log: %w", err)
	}

	return nil
}

// ListRecent returns the newest send attempts with the student name joined in.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*whatsapp.Log, error) {
	query := `
		SELECT l.id, l.student_id, l.transaction_id, l.phone_number, l.message,
		       l.status, l.response, l.created_at, COALESCE(st.name, '')
		FROM whatsapp_logs l
		LEFT JOIN students st ON l.student_id = st.id
		ORDER BY l.created_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing whatsapp logs: %w", err)
	}
	defer rows.Close()

	var logs []*whatsapp.Log

	for rows.Next() {
		var (
			l        whatsapp.Log
			response sql.NullString
		)

		if err := rows.Scan(
			&l.ID, &l.StudentID, &l.TransactionID, &l.PhoneNumber, &l.Message,
			&l.Status, &response, &l.CreatedAt, &l.StudentName,
		); err != nil {
			return nil, fmt.Errorf("scanning whatsapp log: %w", err)
		}

		l.Response = response.String
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating whatsapp logs: %w", err)
	}

	return logs, nil
}

// RecordBroadcast keeps one row per operator-triggered broadcast batch.
func (s *Store) RecordBroadcast(ctx context.Context, totalRecipients, delaySeconds int, paymentTypeID *uuid.UUID) error {
	query := `
		INSERT INTO broadcast_logs (total_recipients, delay_seconds, payment_type_id, status, created_at)
		VALUES ($1, $2, $3, 'queued', NOW())
	`

	if _, err := s.db.ExecContext(ctx, query, totalRecipients, delaySeconds, paymentTypeID); err != nil {
		return fmt.Errorf("recording broadcast: %w", err)
	}

	return nil
}
