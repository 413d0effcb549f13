// Package dispatch paces outbound WhatsApp messages. The queued
// implementation spaces a batch out on a Redis-backed queue with bounded
// retries; when Redis is unreachable the immediate implementation sends
// synchronously instead. Both satisfy Dispatcher so callers never branch on
// which path is live.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"kaskelas/internal/whatsapp"
)

const (
	// TypeSendMessage is the queue task type for one outbound message.
	TypeSendMessage = "whatsapp:send"

	queueName = "whatsapp"

	minDelaySeconds = 1
	maxDelaySeconds = 300

	// maxAttempts bounds delivery tries per job; retryBase doubles per retry
	// (5s, 10s, 20s).
	maxAttempts = 3
	retryBase   = 5 * time.Second
)

var ErrJobNotFound = errors.New("job not found")

// Message is one outbound message in a batch.
type Message struct {
	PhoneNumber string     `json:"phone_number"`
	Message     string     `json:"message"`
	StudentID   *uuid.UUID `json:"student_id,omitempty"`
	StudentName string     `json:"student_name,omitempty"`
}

// JobHandle identifies a scheduled job in the queue.
type JobHandle struct {
	ID           string    `json:"id"`
	StudentName  string    `json:"student_name,omitempty"`
	PhoneNumber  string    `json:"phone_number"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// Outcome is the per-message result of a synchronous (fallback) send.
type Outcome struct {
	StudentName string `json:"student_name,omitempty"`
	PhoneNumber string `json:"phone_number"`
	Status      string `json:"status"` // sent | failed
	Error       string `json:"error,omitempty"`
}

// Result is what Enqueue hands back: job handles when the batch was queued,
// per-message outcomes when it was sent directly.
type Result struct {
	Queued   bool
	Jobs     []JobHandle
	Outcomes []Outcome
}

// QueueStatus is an eventually-consistent snapshot of the queue.
type QueueStatus struct {
	Waiting        int  `json:"waiting"`
	Active         int  `json:"active"`
	Completed      int  `json:"completed"`
	Failed         int  `json:"failed"`
	Total          int  `json:"total"`
	QueueAvailable bool `json:"queueAvailable"`
}

// JobInfo is the detail view of one job.
type JobInfo struct {
	ID            string    `json:"id"`
	State         string    `json:"state"`
	Message       Message   `json:"message"`
	Retried       int       `json:"retried"`
	MaxRetry      int       `json:"max_retry"`
	NextProcessAt time.Time `json:"next_process_at,omitzero"`
	LastError     string    `json:"last_error,omitempty"`
}

// Sender is the outbound gateway the queue delivers through.
type Sender interface {
	SendLinked(ctx context.Context, phone, text string, studentID, transactionID *uuid.UUID) *whatsapp.SendResult
}

type Dispatcher interface {
	Enqueue(ctx context.Context, msgs []Message, delaySeconds int) (*Result, error)
	Status(ctx context.Context) (*QueueStatus, error)
	JobStatus(ctx context.Context, id string) (*JobInfo, error)
	Close() error
}

// New probes Redis and returns the queued dispatcher when it is reachable,
// the immediate fallback otherwise.
func New(opt asynq.RedisClientOpt, sender Sender, retention time.Duration) Dispatcher {
	rc := redis.NewClient(&redis.Options{Addr: opt.Addr, Password: opt.Password, DB: opt.DB})
	defer rc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rc.Ping(ctx).Err(); err != nil {
		slog.Warn("message queue unavailable, sending messages directly", "error", err)
		return NewImmediate(sender)
	}

	q := NewQueued(opt, sender, retention)
	if err := q.Start(); err != nil {
		slog.Warn("message queue worker failed to start, sending messages directly", "error", err)
		return NewImmediate(sender)
	}

	return q
}

// ClampDelaySeconds bounds a requested spacing the same way Enqueue does,
// for callers that report the effective delay back.
func ClampDelaySeconds(seconds int) int {
	return int(clampDelay(seconds) / time.Second)
}

// clampDelay bounds the per-message spacing to [1s, 300s].
func clampDelay(seconds int) time.Duration {
	if seconds < minDelaySeconds {
		seconds = minDelaySeconds
	}

	if seconds > maxDelaySeconds {
		seconds = maxDelaySeconds
	}

	return time.Duration(seconds) * time.Second
}

// scheduleOffsets spaces n messages delay apart: 0, d, 2d, ...
func scheduleOffsets(n int, delay time.Duration) []time.Duration {
	offsets := make([]time.Duration, n)
	for i := range offsets {
		offsets[i] = time.Duration(i) * delay
	}

	return offsets
}

// retryDelay returns the wait before the next attempt given how many retries
// have already run. asynq hands the handler msg.Retried, which is 0 before
// the first retry, so the sequence comes out 5s, 10s, 20s.
func retryDelay(retried int) time.Duration {
	if retried < 0 {
		retried = 0
	}

	return retryBase << retried
}
