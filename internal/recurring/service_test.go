package recurring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaskelas/internal/reminder"
	"kaskelas/internal/transaction"
)

type fakeRepo struct {
	settings []*Setting
	students []*transaction.Student
}

func (f *fakeRepo) ListActiveForDay(_ context.Context, day int) ([]*Setting, error) {
	var out []*Setting

	for _, s := range f.settings {
		if s.IsActive && s.DayOfMonth == day {
			out = append(out, s)
		}
	}

	return out, nil
}

func (f *fakeRepo) GetSetting(_ context.Context, paymentTypeID uuid.UUID) (*Setting, error) {
	for _, s := range f.settings {
		if s.PaymentTypeID == paymentTypeID {
			return s, nil
		}
	}

	return nil, errors.New("setting not found")
}

func (f *fakeRepo) ListStudents(context.Context) ([]*transaction.Student, error) {
	return f.students, nil
}

type cycleKey struct {
	student     uuid.UUID
	paymentType uuid.UUID
}

type fakeTransactions struct {
	existing    map[cycleKey]bool
	created     []*transaction.Transaction
	urls        map[uuid.UUID]string
	failForType uuid.UUID
}

func (f *fakeTransactions) Create(_ context.Context, params transaction.CreateParams) (*transaction.Transaction, error) {
	if params.PaymentTypeID == f.failForType {
		return nil, errors.New("insert failed")
	}

	tx := &transaction.Transaction{
		ID:            uuid.New(),
		StudentID:     params.StudentID,
		PaymentTypeID: params.PaymentTypeID,
		Amount:        params.Amount,
		OrderID:       transaction.NewOrderID(time.Now()),
		Status:        transaction.StatusPending,
		DueDate:       params.DueDate,
	}

	f.created = append(f.created, tx)
	f.existing[cycleKey{params.StudentID, params.PaymentTypeID}] = true

	return tx, nil
}

func (f *fakeTransactions) HasForCycle(_ context.Context, studentID, paymentTypeID uuid.UUID, _, _ time.Time) (bool, error) {
	return f.existing[cycleKey{studentID, paymentTypeID}], nil
}

func (f *fakeTransactions) AttachPaymentURL(_ context.Context, id uuid.UUID, url string) error {
	if f.urls == nil {
		f.urls = map[uuid.UUID]string{}
	}

	f.urls[id] = url

	return nil
}

type fakePlanner struct {
	plans []reminder.PlanParams
}

func (f *fakePlanner) PlanForTransaction(_ context.Context, p reminder.PlanParams) error {
	f.plans = append(f.plans, p)
	return nil
}

type fakeLinks struct{}

func (fakeLinks) PaymentURL(orderID string, amount int64) string {
	return "https://pay.example/" + orderID
}

func testSetting(day int) *Setting {
	ptID := uuid.New()

	return &Setting{
		ID:             uuid.New(),
		PaymentTypeID:  ptID,
		IsActive:       true,
		DayOfMonth:     day,
		ReminderDays:   []int{7, 3, 1},
		EscalationDays: 3,
		PaymentType:    &transaction.PaymentType{ID: ptID, Name: "Kas Bulanan", Amount: 50000, IsRecurring: true},
	}
}

func TestGenerateDueToday(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	repo := &fakeRepo{
		settings: []*Setting{testSetting(1), testSetting(15)},
		students: []*transaction.Student{
			{ID: uuid.New(), Name: "Aisyah", ParentPhone: "0812A"},
			{ID: uuid.New(), Name: "Bagas", ParentPhone: "0812B"},
		},
	}
	txs := &fakeTransactions{existing: map[cycleKey]bool{}}
	planner := &fakePlanner{}

	svc := NewService(repo, txs, planner, fakeLinks{})

	result, err := svc.GenerateDueToday(context.Background(), now)
	require.NoError(t, err)

	// Only the day-1 setting is due; one transaction per student.
	assert.Equal(t, 2, result.Generated)
	assert.Empty(t, result.Errors)
	require.Len(t, txs.created, 2)

	// Due at month end, payment link attached, reminder cycle planned.
	for _, tx := range txs.created {
		assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), tx.DueDate)
		assert.Equal(t, "https://pay.example/"+tx.OrderID, txs.urls[tx.ID])
	}

	require.Len(t, planner.plans, 2)
	assert.Equal(t, []int{7, 3, 1}, planner.plans[0].ReminderDays)
	assert.Equal(t, 3, planner.plans[0].EscalationDays)
}

func TestGenerateDueToday_Idempotent(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	repo := &fakeRepo{
		settings: []*Setting{testSetting(1)},
		students: []*transaction.Student{{ID: uuid.New(), Name: "Aisyah"}},
	}
	txs := &fakeTransactions{existing: map[cycleKey]bool{}}
	svc := NewService(repo, txs, &fakePlanner{}, fakeLinks{})

	first, err := svc.GenerateDueToday(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Generated)

	// Second run on the same day creates nothing new.
	second, err := svc.GenerateDueToday(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, second.Generated)
	assert.Len(t, txs.created, 1)
}

func TestGenerateDueToday_PartialFailureIsolated(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	broken := testSetting(1)
	healthy := testSetting(1)

	repo := &fakeRepo{
		settings: []*Setting{broken, healthy},
		students: []*transaction.Student{{ID: uuid.New(), Name: "Aisyah"}},
	}
	txs := &fakeTransactions{existing: map[cycleKey]bool{}, failForType: broken.PaymentTypeID}
	svc := NewService(repo, txs, &fakePlanner{}, fakeLinks{})

	result, err := svc.GenerateDueToday(context.Background(), now)
	require.NoError(t, err)

	// The broken type reports an error; the healthy one still generates.
	assert.Equal(t, 1, result.Generated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Kas Bulanan")
}

func TestGenerate_SpecificType(t *testing.T) {
	now := time.Date(2025, 3, 20, 8, 0, 0, 0, time.UTC)
	setting := testSetting(1) // not due today, but explicit generation ignores the day

	repo := &fakeRepo{
		settings: []*Setting{setting},
		students: []*transaction.Student{{ID: uuid.New(), Name: "Aisyah"}},
	}
	txs := &fakeTransactions{existing: map[cycleKey]bool{}}
	svc := NewService(repo, txs, &fakePlanner{}, fakeLinks{})

	result, err := svc.Generate(context.Background(), setting.PaymentTypeID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)
}
