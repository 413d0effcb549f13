package reminder

import (
	"time"

	"github.com/google/uuid"

	"kaskelas/internal/transaction"
)

// Type distinguishes the stages of one reminder cycle.
type Type string

const (
	TypeBeforeDue  Type = "before_due"
	TypeOnDue      Type = "on_due"
	TypeEscalation Type = "escalation"
)

// Status represents the lifecycle state of one scheduled reminder.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// MaxAttempts caps how often a failing reminder is retried across daily runs
// before it is cancelled for good.
const MaxAttempts = 5

// Schedule is one reminder for one transaction on one date.
type Schedule struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Type          Type
	ScheduledDate time.Time
	Status        Status
	Attempts      int
	LastAttemptAt *time.Time
	SentAt        *time.Time
	ErrorMessage  string
	CreatedAt     time.Time

	// Loaded via JOIN
	Transaction *transaction.Transaction
}
