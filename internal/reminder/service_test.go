package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaskelas/internal/transaction"
	"kaskelas/internal/whatsapp"
)

type fakeRepo struct {
	created   []*Schedule
	due       []*Schedule
	sent      []uuid.UUID
	failures  []struct {
		id     uuid.UUID
		errMsg string
		cancel bool
	}
	cancelled []uuid.UUID
}

func (f *fakeRepo) CreateSchedule(_ context.Context, s *Schedule) error {
	f.created = append(f.created, s)
	return nil
}

func (f *fakeRepo) ListDueOn(context.Context, time.Time) ([]*Schedule, error) {
	return f.due, nil
}

func (f *fakeRepo) MarkSent(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeRepo) MarkFailure(_ context.Context, id uuid.UUID, _ time.Time, errMsg string, cancel bool) error {
	f.failures = append(f.failures, struct {
		id     uuid.UUID
		errMsg string
		cancel bool
	}{id, errMsg, cancel})

	return nil
}

func (f *fakeRepo) CancelSchedule(_ context.Context, id uuid.UUID) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeRepo) CancelForTransaction(context.Context, uuid.UUID) error { return nil }

type fakeGateway struct {
	sent    []string // rendered messages
	phones  []string
	failAll bool
}

func (f *fakeGateway) SendLinked(_ context.Context, phone, text string, _, _ *uuid.UUID) *whatsapp.SendResult {
	f.sent = append(f.sent, text)
	f.phones = append(f.phones, phone)

	if f.failAll {
		return &whatsapp.SendResult{Success: false, Error: "provider down"}
	}

	return &whatsapp.SendResult{Success: true}
}

type fakeLinks struct{}

func (fakeLinks) PaymentURL(orderID string, amount int64) string {
	return "https://pay.example/" + orderID
}

func newTestService(repo *fakeRepo, gw *fakeGateway) *Service {
	return NewService(repo, gw, fakeLinks{}, Templates{ClassName: "Kelas 1B"})
}

func TestCycleRows(t *testing.T) {
	txID := uuid.New()
	due := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	rows := cycleRows(PlanParams{
		TransactionID:  txID,
		DueDate:        due,
		ReminderDays:   []int{7, 3, 1},
		EscalationDays: 3,
	})

	require.Len(t, rows, 5)

	byDate := map[string]Type{}
	for _, r := range rows {
		assert.Equal(t, txID, r.TransactionID)
		assert.Equal(t, StatusPending, r.Status)
		byDate[r.ScheduledDate.Format(time.DateOnly)] = r.Type
	}

	assert.Equal(t, map[string]Type{
		"2025-03-03": TypeBeforeDue,
		"2025-03-07": TypeBeforeDue,
		"2025-03-09": TypeBeforeDue,
		"2025-03-10": TypeOnDue,
		"2025-03-13": TypeEscalation,
	}, byDate)
}

func TestCycleRows_NoEscalation(t *testing.T) {
	rows := cycleRows(PlanParams{
		TransactionID: uuid.New(),
		DueDate:       time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		ReminderDays:  []int{1},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, TypeBeforeDue, rows[0].Type)
	assert.Equal(t, TypeOnDue, rows[1].Type)
}

func dueReminder(txStatus transaction.Status, phone string, attempts int) *Schedule {
	txID := uuid.New()
	studentID := uuid.New()

	return &Schedule{
		ID:            uuid.New(),
		TransactionID: txID,
		Type:          TypeOnDue,
		ScheduledDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:        StatusPending,
		Attempts:      attempts,
		Transaction: &transaction.Transaction{
			ID:        txID,
			StudentID: studentID,
			Amount:    50000,
			OrderID:   "ORDER1",
			Status:    txStatus,
			DueDate:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			Student: &transaction.Student{
				ID:          studentID,
				Name:        "Aisyah",
				ParentPhone: phone,
			},
			PaymentType: &transaction.PaymentType{Name: "Kas Bulanan", Amount: 50000},
		},
	}
}

func TestProcessDue_SendsAndMarks(t *testing.T) {
	repo := &fakeRepo{due: []*Schedule{dueReminder(transaction.StatusPending, "0812", 0)}}
	gw := &fakeGateway{}

	result, err := newTestService(repo, gw).ProcessDue(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Sent)
	assert.Zero(t, result.Failed)

	require.Len(t, gw.sent, 1)
	assert.Contains(t, gw.sent[0], "Rp 50.000")
	assert.Contains(t, gw.sent[0], "https://pay.example/ORDER1")
	assert.Len(t, repo.sent, 1)
}

func TestProcessDue_SkipsPaidTransaction(t *testing.T) {
	r := dueReminder(transaction.StatusCompleted, "0812", 0)
	repo := &fakeRepo{due: []*Schedule{r}}
	gw := &fakeGateway{}

	result, err := newTestService(repo, gw).ProcessDue(context.Background(), time.Now())
	require.NoError(t, err)

	// Nothing sent for a settled obligation; the row is cancelled instead.
	assert.Empty(t, gw.sent)
	assert.Zero(t, result.Sent)
	assert.Equal(t, []uuid.UUID{r.ID}, repo.cancelled)
}

func TestProcessDue_SkipsMissingPhone(t *testing.T) {
	repo := &fakeRepo{due: []*Schedule{dueReminder(transaction.StatusPending, "", 0)}}
	gw := &fakeGateway{}

	result, err := newTestService(repo, gw).ProcessDue(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Empty(t, gw.sent)
	assert.Zero(t, result.Sent)
	assert.Zero(t, result.Failed)
	assert.Empty(t, repo.failures)
}

func TestProcessDue_FailureStaysPending(t *testing.T) {
	repo := &fakeRepo{due: []*Schedule{dueReminder(transaction.StatusPending, "0812", 0)}}
	gw := &fakeGateway{failAll: true}

	result, err := newTestService(repo, gw).ProcessDue(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	require.Len(t, repo.failures, 1)
	assert.Equal(t, "provider down", repo.failures[0].errMsg)
	assert.False(t, repo.failures[0].cancel)
}

func TestProcessDue_AttemptCapCancels(t *testing.T) {
	repo := &fakeRepo{due: []*Schedule{dueReminder(transaction.StatusPending, "0812", MaxAttempts-1)}}
	gw := &fakeGateway{failAll: true}

	result, err := newTestService(repo, gw).ProcessDue(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	require.Len(t, repo.failures, 1)
	assert.True(t, repo.failures[0].cancel)
}

func TestProcessDue_UsesPersistedPaymentURL(t *testing.T) {
	r := dueReminder(transaction.StatusPending, "0812", 0)
	r.Transaction.PaymentURL = "https://persisted.example/pay"
	repo := &fakeRepo{due: []*Schedule{r}}
	gw := &fakeGateway{}

	_, err := newTestService(repo, gw).ProcessDue(context.Background(), time.Now())
	require.NoError(t, err)

	require.Len(t, gw.sent, 1)
	assert.Contains(t, gw.sent[0], "https://persisted.example/pay")
}
