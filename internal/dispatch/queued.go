package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Queued delivers batches through an asynq queue: each message is scheduled
// at its batch offset and retried with exponential backoff until the attempt
// bound is hit, after which the task is archived as permanently failed.
type Queued struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	server    *asynq.Server
	sender    Sender
	retention time.Duration
}

func NewQueued(opt asynq.RedisClientOpt, sender Sender, retention time.Duration) *Queued {
	if retention <= 0 {
		retention = 48 * time.Hour
	}

	server := asynq.NewServer(opt, asynq.Config{
		// One worker: messages leave in order, never faster than their
		// scheduled spacing.
		Concurrency: 1,
		Queues:      map[string]int{queueName: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return retryDelay(n)
		},
	})

	return &Queued{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		server:    server,
		sender:    sender,
		retention: retention,
	}
}

// Start launches the background worker.
func (q *Queued) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSendMessage, q.handleSend)

	if err := q.server.Start(mux); err != nil {
		return fmt.Errorf("starting queue worker: %w", err)
	}

	return nil
}

func (q *Queued) handleSend(ctx context.Context, task *asynq.Task) error {
	var msg Message
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return fmt.Errorf("decoding message payload: %v: %w", err, asynq.SkipRetry)
	}

	res := q.sender.SendLinked(ctx, msg.PhoneNumber, msg.Message, msg.StudentID, nil)
	if !res.Success {
		return errors.New(res.Error)
	}

	return nil
}

func (q *Queued) Enqueue(ctx context.Context, msgs []Message, delaySeconds int) (*Result, error) {
	delay := clampDelay(delaySeconds)
	offsets := scheduleOffsets(len(msgs), delay)
	now := time.Now()

	jobs := make([]JobHandle, 0, len(msgs))

	for i, msg := range msgs {
		payload, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("encoding message %d: %w", i, err)
		}

		info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TypeSendMessage, payload),
			asynq.Queue(queueName),
			asynq.TaskID(uuid.NewString()),
			asynq.ProcessIn(offsets[i]),
			asynq.MaxRetry(maxAttempts-1),
			asynq.Retention(q.retention),
		)
		if err != nil {
			return nil, fmt.Errorf("enqueueing message %d: %w", i, err)
		}

		jobs = append(jobs, JobHandle{
			ID:           info.ID,
			StudentName:  msg.StudentName,
			PhoneNumber:  msg.PhoneNumber,
			ScheduledFor: now.Add(offsets[i]),
		})
	}

	return &Result{Queued: true, Jobs: jobs}, nil
}

func (q *Queued) Status(ctx context.Context) (*QueueStatus, error) {
	info, err := q.inspector.GetQueueInfo(queueName)
	if err != nil {
		return nil, fmt.Errorf("querying queue info: %w", err)
	}

	status := &QueueStatus{
		Waiting:        info.Pending + info.Scheduled + info.Retry,
		Active:         info.Active,
		Completed:      info.Completed,
		Failed:         info.Archived,
		QueueAvailable: true,
	}
	status.Total = status.Waiting + status.Active + status.Completed + status.Failed

	return status, nil
}

func (q *Queued) JobStatus(ctx context.Context, id string) (*JobInfo, error) {
	info, err := q.inspector.GetTaskInfo(queueName, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, ErrJobNotFound
		}

		return nil, fmt.Errorf("querying job %s: %w", id, err)
	}

	job := &JobInfo{
		ID:            info.ID,
		State:         info.State.String(),
		Retried:       info.Retried,
		MaxRetry:      info.MaxRetry,
		NextProcessAt: info.NextProcessAt,
		LastError:     info.LastErr,
	}

	// Payload decode is best effort: the job is reportable either way.
	_ = json.Unmarshal(info.Payload, &job.Message)

	return job, nil
}

func (q *Queued) Close() error {
	q.server.Shutdown()

	if err := q.client.Close(); err != nil {
		return fmt.Errorf("closing queue client: %w", err)
	}

	return q.inspector.Close()
}
