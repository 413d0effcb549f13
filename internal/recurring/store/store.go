package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"kaskelas/internal/recurring"
	"kaskelas/internal/transaction"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectSettingColumns = `
	r.id, r.payment_type_id, r.is_active, r.day_of_month, r.reminder_days,
	r.escalation_days, r.created_at, r.updated_at,
	p.name, p.amount, p.is_recurring
`

const settingJoins = `
	FROM recurring_settings r
	JOIN payment_types p ON r.payment_type_id = p.id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanSetting(s scanner) (*recurring.Setting, error) {
	var (
		setting      recurring.Setting
		reminderDays []byte
		paymentType  transaction.PaymentType
	)

	if err := s.Scan(
		&setting.ID, &setting.PaymentTypeID, &setting.IsActive, &setting.DayOfMonth, &reminderDays,
		&setting.EscalationDays, &setting.CreatedAt, &setting.UpdatedAt,
		&paymentType.Name, &paymentType.Amount, &paymentType.IsRecurring,
	); err != nil {
		return nil, err
	}

	// reminder_days is stored as a jsonb array of day offsets.
	if len(reminderDays) > 0 {
		if err := json.Unmarshal(reminderDays, &setting.ReminderDays); err != nil {
			return nil, fmt.Errorf("decoding reminder days: %w", err)
		}
	}

	paymentType.ID = setting.PaymentTypeID
	setting.PaymentType = &paymentType

	return &setting, nil
}

func (s *Store) ListActiveForDay(ctx context.Context, day int) ([]*recurring.Setting, error) {
	query := `SELECT ` + selectSettingColumns + settingJoins + `
		WHERE r.is_active AND r.day_of_month = $1
		ORDER BY r.created_at`

	rows, err := s.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("listing recurring settings: %w", err)
	}
	defer rows.Close()

	var settings []*recurring.Setting

	for rows.Next() {
		setting, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning recurring setting: %w", err)
		}

		settings = append(settings, setting)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recurring settings: %w", err)
	}

	return settings, nil
}

func (s *Store) GetSetting(ctx context.Context, paymentTypeID uuid.UUID) (*recurring.Setting, error) {
	query := `SELECT ` + selectSettingColumns + settingJoins + `WHERE r.payment_type_id = $1`

	setting, err := scanSetting(s.db.QueryRowContext(ctx, query, paymentTypeID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no recurring setting for payment type %s", paymentTypeID)
		}

		return nil, fmt.Errorf("getting recurring setting: %w", err)
	}

	return setting, nil
}

func (s *Store) ListStudents(ctx context.Context) ([]*transaction.Student, error) {
	query := `SELECT id, name, COALESCE(parent_phone, '') FROM students ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing students: %w", err)
	}
	defer rows.Close()

	var students []*transaction.Student

	for rows.Next() {
		var st transaction.Student
		if err := rows.Scan(&st.ID, &st.Name, &st.ParentPhone); err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}

		students = append(students, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating students: %w", err)
	}

	return students, nil
}
