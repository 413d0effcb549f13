package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=transaction
type Repository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByOrderID(ctx context.Context, orderID string) (*Transaction, error)
	UpdatePaymentURL(ctx context.Context, id uuid.UUID, url string) error

	// CompletePending transitions a pending transaction to completed and
	// returns it. It returns nil when no pending row matched the order ID.
	CompletePending(ctx context.Context, orderID, method string, completedAt time.Time) (*Transaction, error)

	HasForCycle(ctx context.Context, studentID, paymentTypeID uuid.UUID, from, to time.Time) (bool, error)
	ListPending(ctx context.Context) ([]*Transaction, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	StudentID     uuid.UUID
	PaymentTypeID uuid.UUID
	Amount        int64
	DueDate       time.Time
}

// Create registers a new pending obligation with a fresh order ID.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Transaction, error) {
	tx := &Transaction{
		StudentID:     params.StudentID,
		PaymentTypeID: params.PaymentTypeID,
		Amount:        params.Amount,
		OrderID:       NewOrderID(time.Now()),
		Status:        StatusPending,
		DueDate:       params.DueDate,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	return tx, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) GetByOrderID(ctx context.Context, orderID string) (*Transaction, error) {
	return s.repo.GetByOrderID(ctx, orderID)
}

func (s *Service) AttachPaymentURL(ctx context.Context, id uuid.UUID, url string) error {
	return s.repo.UpdatePaymentURL(ctx, id, url)
}

// Complete marks the transaction for orderID as paid. The transition is
// guarded by the row's current status so a duplicate webhook delivery is a
// no-op: the second call returns the stored transaction alongside
// ErrAlreadyCompleted.
func (s *Service) Complete(ctx context.Context, orderID, method string, completedAt time.Time) (*Transaction, error) {
	if method == "" {
		method = "qris"
	}

	tx, err := s.repo.CompletePending(ctx, orderID, method, completedAt)
	if err != nil {
		return nil, fmt.Errorf("completing transaction %s: %w", orderID, err)
	}

	if tx != nil {
		return tx, nil
	}

	// No pending row matched: either unknown, already completed, or in a
	// state that cannot complete.
	existing, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if existing.Status == StatusCompleted {
		return existing, ErrAlreadyCompleted
	}

	return existing, ErrNotPending
}

// HasForCycle reports whether the student already has a pending or completed
// obligation for the payment type inside [from, to].
func (s *Service) HasForCycle(ctx context.Context, studentID, paymentTypeID uuid.UUID, from, to time.Time) (bool, error) {
	return s.repo.HasForCycle(ctx, studentID, paymentTypeID, from, to)
}

func (s *Service) ListPending(ctx context.Context) ([]*Transaction, error) {
	return s.repo.ListPending(ctx)
}
