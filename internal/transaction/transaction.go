package transaction

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a payment obligation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrNotFound         = errors.New("transaction not found")
	ErrAlreadyCompleted = errors.New("transaction already completed")
	ErrNotPending       = errors.New("transaction is not pending")
)

// Transaction is one payment obligation for one student, correlated with the
// payment provider through its order ID.
type Transaction struct {
	ID            uuid.UUID
	StudentID     uuid.UUID
	PaymentTypeID uuid.UUID
	Amount        int64 // Amount in rupiah
	OrderID       string
	Status        Status
	PaymentURL    string
	PaymentMethod string
	DueDate       time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     *time.Time

	// Loaded via JOIN
	Student     *Student
	PaymentType *PaymentType
}

// Student carries the identity and parent contact needed for messaging.
type Student struct {
	ID          uuid.UUID
	Name        string
	ParentPhone string
}

// PaymentType is the billing category an obligation belongs to.
type PaymentType struct {
	ID          uuid.UUID
	Name        string
	Amount      int64
	IsRecurring bool
}

const orderIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderID returns a fresh order ID: the current date (yymmdd) followed by
// nine random base36 characters.
func NewOrderID(now time.Time) string {
	b := make([]byte, 9)
	for i := range b {
		b[i] = orderIDAlphabet[rand.IntN(len(orderIDAlphabet))]
	}

	return now.Format("060102") + string(b)
}
