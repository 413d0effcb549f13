package dispatch

import (
	"context"
)

// Immediate is the degraded-mode dispatcher: no queue backend, so messages
// are sent synchronously one at a time, in submission order, with no delay
// and no retries.
type Immediate struct {
	sender Sender
}

func NewImmediate(sender Sender) *Immediate {
	return &Immediate{sender: sender}
}

func (d *Immediate) Enqueue(ctx context.Context, msgs []Message, _ int) (*Result, error) {
	outcomes := make([]Outcome, 0, len(msgs))

	for _, msg := range msgs {
		outcome := Outcome{
			StudentName: msg.StudentName,
			PhoneNumber: msg.PhoneNumber,
			Status:      "sent",
		}

		res := d.sender.SendLinked(ctx, msg.PhoneNumber, msg.Message, msg.StudentID, nil)
		if !res.Success {
			outcome.Status = "failed"
			outcome.Error = res.Error
		}

		outcomes = append(outcomes, outcome)
	}

	return &Result{Queued: false, Outcomes: outcomes}, nil
}

func (d *Immediate) Status(context.Context) (*QueueStatus, error) {
	return &QueueStatus{QueueAvailable: false}, nil
}

func (d *Immediate) JobStatus(context.Context, string) (*JobInfo, error) {
	return nil, ErrJobNotFound
}

func (d *Immediate) Close() error { return nil }
