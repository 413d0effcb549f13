package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kaskelas/internal/balance"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) IncomeOn(ctx context.Context, date time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE status = 'completed' AND completed_at::date = $1::date
	`

	var total int64
	if err := s.db.QueryRowContext(ctx, query, date).Scan(&total); err != nil {
		return 0, fmt.Errorf("summing income: %w", err)
	}

	return total, nil
}

func (s *Store) ExpenseOn(ctx context.Context, date time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE expense_date = $1::date
	`

	var total int64
	if err := s.db.QueryRowContext(ctx, query, date).Scan(&total); err != nil {
		return 0, fmt.Errorf("summing expenses: %w", err)
	}

	return total, nil
}

func (s *Store) ClosingBefore(ctx context.Context, date time.Time) (int64, error) {
	query := `
		SELECT closing_balance
		FROM cash_balances
		WHERE balance_date < $1::date
		ORDER BY balance_date DESC
		LIMIT 1
	`

	var closing int64

	err := s.db.QueryRowContext(ctx, query, date).Scan(&closing)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}

		return 0, fmt.Errorf("loading previous closing balance: %w", err)
	}

	return closing, nil
}

func (s *Store) Upsert(ctx context.Context, day *balance.Day) error {
	query := `
		INSERT INTO cash_balances (balance_date, opening_balance, total_income, total_expense, closing_balance, updated_at)
		VALUES ($1::date, $2, $3, $4, $5, NOW())
		ON CONFLICT (balance_date) DO UPDATE SET
			opening_balance = EXCLUDED.opening_balance,
			total_income = EXCLUDED.total_income,
			total_expense = EXCLUDED.total_expense,
			closing_balance = EXCLUDED.closing_balance,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query,
		day.Date, day.OpeningBalance, day.TotalIncome, day.TotalExpense, day.ClosingBalance)
	if err != nil {
		return fmt.Errorf("upserting cash balance: %w", err)
	}

	return nil
}
