package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kaskelas/internal/payment"
	"kaskelas/internal/transaction"
)

// Transactions exposes the settlement side of the transaction service.
type Transactions interface {
	ListPending(ctx context.Context) ([]*transaction.Transaction, error)
	Complete(ctx context.Context, orderID, method string, completedAt time.Time) (*transaction.Transaction, error)
}

// PaymentDetails queries the provider for its record of an order.
type PaymentDetails interface {
	TransactionDetail(ctx context.Context, orderID string, amount int64) (*payment.Detail, error)
}

type ReminderCanceller interface {
	CancelForTransaction(ctx context.Context, transactionID uuid.UUID) error
}

// Settlements recovers completions whose webhook never arrived.
type Settlements interface {
	SettlePending(ctx context.Context) (*SettleResult, error)
}

type SettleResult struct {
	Checked   int
	Completed int
	Errors    []string
}

// Reconciler sweeps pending transactions against the payment provider and
// settles the ones the provider already marked paid. A transaction settled
// here goes through the same transition as a webhook delivery, so its
// reminders are cancelled and the day's balance refreshed.
type Reconciler struct {
	transactions Transactions
	payments     PaymentDetails
	reminders    ReminderCanceller
	balances     Balances
}

func NewReconciler(
	transactions Transactions,
	payments PaymentDetails,
	reminders ReminderCanceller,
	balances Balances,
) *Reconciler {
	return &Reconciler{
		transactions: transactions,
		payments:     payments,
		reminders:    reminders,
		balances:     balances,
	}
}

func (r *Reconciler) SettlePending(ctx context.Context) (*SettleResult, error) {
	pending, err := r.transactions.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending transactions: %w", err)
	}

	result := &SettleResult{Checked: len(pending)}

	for _, tx := range pending {
		detail, err := r.payments.TransactionDetail(ctx, tx.OrderID, tx.Amount)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to check %s: %v", tx.OrderID, err))
			continue
		}

		if detail.Status != "completed" {
			continue
		}

		completedAt := time.Now()
		if detail.CompletedAt != nil {
			completedAt = *detail.CompletedAt
		}

		completed, err := r.transactions.Complete(ctx, tx.OrderID, detail.PaymentMethod, completedAt)
		if err != nil {
			// Settled by a webhook between the listing and now.
			if errors.Is(err, transaction.ErrAlreadyCompleted) {
				continue
			}

			result.Errors = append(result.Errors, fmt.Sprintf("failed to settle %s: %v", tx.OrderID, err))

			continue
		}

		result.Completed++
		slog.Info("settled missed payment", "order_id", tx.OrderID, "transaction_id", completed.ID)

		if err := r.reminders.CancelForTransaction(ctx, completed.ID); err != nil {
			slog.Error("failed to cancel reminders", "transaction_id", completed.ID, "error", err)
		}

		if _, err := r.balances.Recompute(ctx, dateOnly(completedAt)); err != nil {
			slog.Error("failed to recompute balance", "order_id", tx.OrderID, "error", err)
		}
	}

	return result, nil
}
