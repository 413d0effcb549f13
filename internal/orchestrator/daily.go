// Package orchestrator is the once-a-day entry point: generate recurring
// obligations, send the reminders due today, recompute the day's cash
// balance. Steps are isolated so one failing step never blocks the rest, and
// re-running on the same day is a net no-op thanks to the generator's cycle
// check and the reminder rows' status guards.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kaskelas/internal/balance"
	"kaskelas/internal/recurring"
	"kaskelas/internal/reminder"
)

type Generator interface {
	GenerateDueToday(ctx context.Context, now time.Time) (*recurring.Result, error)
}

type Reminders interface {
	ProcessDue(ctx context.Context, date time.Time) (*reminder.ProcessResult, error)
}

type Balances interface {
	Recompute(ctx context.Context, date time.Time) (*balance.Day, error)
}

type Daily struct {
	generator   Generator
	reminders   Reminders
	balances    Balances
	settlements Settlements
}

// NewDaily wires the daily sequence. settlements may be nil when the
// provider's query API is not configured; the sweep is then skipped.
func NewDaily(generator Generator, reminders Reminders, balances Balances, settlements Settlements) *Daily {
	return &Daily{
		generator:   generator,
		reminders:   reminders,
		balances:    balances,
		settlements: settlements,
	}
}

// Summary is the daily run report returned to the external scheduler.
type Summary struct {
	Date               string   `json:"date"`
	RecurringGenerated int      `json:"recurringGenerated"`
	RemindersSent      int      `json:"remindersSent"`
	RemindersFailed    int      `json:"remindersFailed"`
	TotalReminders     int      `json:"totalReminders"`
	Errors             []string `json:"errors,omitempty"`
}

// Run executes the daily sequence best-effort and reports what happened.
func (d *Daily) Run(ctx context.Context, now time.Time) *Summary {
	summary := &Summary{Date: now.Format(time.DateOnly)}

	slog.Info("running daily job", "date", summary.Date)

	generated, err := d.generator.GenerateDueToday(ctx, now)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("recurring generation: %v", err))
		slog.Error("recurring generation failed", "error", err)
	} else {
		summary.RecurringGenerated = generated.Generated
		summary.Errors = append(summary.Errors, generated.Errors...)
	}

	// Settle payments whose webhook never arrived before sending reminders,
	// so freshly paid students are not chased.
	if d.settlements != nil {
		settled, err := d.settlements.SettlePending(ctx)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("payment reconciliation: %v", err))
			slog.Error("payment reconciliation failed", "error", err)
		} else {
			summary.Errors = append(summary.Errors, settled.Errors...)
			slog.Info("payment reconciliation completed", "checked", settled.Checked, "settled", settled.Completed)
		}
	}

	processed, err := d.reminders.ProcessDue(ctx, dateOnly(now))
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("reminder processing: %v", err))
		slog.Error("reminder processing failed", "error", err)
	} else {
		summary.RemindersSent = processed.Sent
		summary.RemindersFailed = processed.Failed
		summary.TotalReminders = processed.Processed
	}

	if _, err := d.balances.Recompute(ctx, dateOnly(now)); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("balance recompute: %v", err))
		slog.Error("balance recompute failed", "error", err)
	}

	slog.Info("daily job completed",
		"date", summary.Date,
		"recurring_generated", summary.RecurringGenerated,
		"reminders_sent", summary.RemindersSent,
		"reminders_failed", summary.RemindersFailed,
		"errors", len(summary.Errors),
	)

	return summary
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
