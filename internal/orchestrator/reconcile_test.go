package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaskelas/internal/payment"
	"kaskelas/internal/transaction"
)

type fakeTransactions struct {
	pending []*transaction.Transaction

	completed   []string
	completeErr map[string]error
}

func (f *fakeTransactions) ListPending(context.Context) ([]*transaction.Transaction, error) {
	return f.pending, nil
}

func (f *fakeTransactions) Complete(_ context.Context, orderID, method string, completedAt time.Time) (*transaction.Transaction, error) {
	for _, tx := range f.pending {
		if tx.OrderID != orderID {
			continue
		}

		if err := f.completeErr[orderID]; err != nil {
			return tx, err
		}

		f.completed = append(f.completed, orderID)
		tx.Status = transaction.StatusCompleted
		tx.PaymentMethod = method
		tx.CompletedAt = &completedAt

		return tx, nil
	}

	return nil, transaction.ErrNotFound
}

type fakeDetails struct {
	details map[string]*payment.Detail
	errFor  map[string]error
}

func (f *fakeDetails) TransactionDetail(_ context.Context, orderID string, _ int64) (*payment.Detail, error) {
	if err := f.errFor[orderID]; err != nil {
		return nil, err
	}

	return f.details[orderID], nil
}

type fakeCanceller struct {
	cancelled []uuid.UUID
}

func (f *fakeCanceller) CancelForTransaction(_ context.Context, id uuid.UUID) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func pendingTx(orderID string, amount int64) *transaction.Transaction {
	return &transaction.Transaction{
		ID:        uuid.New(),
		StudentID: uuid.New(),
		Amount:    amount,
		OrderID:   orderID,
		Status:    transaction.StatusPending,
	}
}

func TestReconciler_SettlePending(t *testing.T) {
	paid := pendingTx("250310AAAAAAAAA", 50000)
	unpaid := pendingTx("250310BBBBBBBBB", 50000)

	completedAt := time.Date(2025, time.March, 9, 16, 45, 0, 0, time.UTC)

	txs := &fakeTransactions{pending: []*transaction.Transaction{paid, unpaid}}
	details := &fakeDetails{details: map[string]*payment.Detail{
		paid.OrderID:   {OrderID: paid.OrderID, Status: "completed", PaymentMethod: "qris", Amount: 50000, CompletedAt: &completedAt},
		unpaid.OrderID: {OrderID: unpaid.OrderID, Status: "pending", Amount: 50000},
	}}
	canceller := &fakeCanceller{}
	balances := &fakeBalances{}

	result, err := NewReconciler(txs, details, canceller, balances).SettlePending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.Completed)
	assert.Empty(t, result.Errors)

	assert.Equal(t, []string{paid.OrderID}, txs.completed)
	assert.Equal(t, transaction.StatusCompleted, paid.Status)
	assert.Equal(t, transaction.StatusPending, unpaid.Status)

	assert.Equal(t, []uuid.UUID{paid.ID}, canceller.cancelled)
	require.Len(t, balances.dates, 1)
	assert.Equal(t, time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC), balances.dates[0])
}

func TestReconciler_ProviderErrorIsIsolated(t *testing.T) {
	broken := pendingTx("250310AAAAAAAAA", 50000)
	paid := pendingTx("250310BBBBBBBBB", 50000)

	txs := &fakeTransactions{pending: []*transaction.Transaction{broken, paid}}
	details := &fakeDetails{
		details: map[string]*payment.Detail{
			paid.OrderID: {OrderID: paid.OrderID, Status: "completed", Amount: 50000},
		},
		errFor: map[string]error{broken.OrderID: errors.New("timeout")},
	}

	result, err := NewReconciler(txs, details, &fakeCanceller{}, &fakeBalances{}).SettlePending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Completed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], broken.OrderID)
	assert.Equal(t, []string{paid.OrderID}, txs.completed)
}

func TestReconciler_WebhookRaceIsNoOp(t *testing.T) {
	raced := pendingTx("250310AAAAAAAAA", 50000)

	txs := &fakeTransactions{
		pending:     []*transaction.Transaction{raced},
		completeErr: map[string]error{raced.OrderID: transaction.ErrAlreadyCompleted},
	}
	details := &fakeDetails{details: map[string]*payment.Detail{
		raced.OrderID: {OrderID: raced.OrderID, Status: "completed", Amount: 50000},
	}}
	canceller := &fakeCanceller{}

	result, err := NewReconciler(txs, details, canceller, &fakeBalances{}).SettlePending(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.Completed)
	assert.Empty(t, result.Errors)
	assert.Empty(t, canceller.cancelled)
}
