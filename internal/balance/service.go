// Package balance maintains the daily cash aggregate. Recomputation is
// idempotent: the day's row is derived entirely from the transactions and
// expenses recorded for that date plus the previous day's closing balance.
package balance

import (
	"context"
	"fmt"
	"time"
)

// Day is one date's aggregate.
type Day struct {
	Date           time.Time
	OpeningBalance int64
	TotalIncome    int64
	TotalExpense   int64
	ClosingBalance int64
}

type Repository interface {
	IncomeOn(ctx context.Context, date time.Time) (int64, error)
	ExpenseOn(ctx context.Context, date time.Time) (int64, error)

	// ClosingBefore returns the most recent closing balance strictly before
	// date, zero when there is none.
	ClosingBefore(ctx context.Context, date time.Time) (int64, error)

	Upsert(ctx context.Context, day *Day) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Recompute rebuilds the aggregate for one date and persists it.
func (s *Service) Recompute(ctx context.Context, date time.Time) (*Day, error) {
	income, err := s.repo.IncomeOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("summing income: %w", err)
	}

	expense, err := s.repo.ExpenseOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("summing expenses: %w", err)
	}

	opening, err := s.repo.ClosingBefore(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("loading opening balance: %w", err)
	}

	day := &Day{
		Date:           date,
		OpeningBalance: opening,
		TotalIncome:    income,
		TotalExpense:   expense,
		ClosingBalance: opening + income - expense,
	}

	if err := s.repo.Upsert(ctx, day); err != nil {
		return nil, fmt.Errorf("upserting balance: %w", err)
	}

	return day, nil
}
