package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the execution-queue contract the producer depends on.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID int64, dedupKey, priority string, delay time.Duration) error
	Cancel(ctx context.Context, dedupKey string) error
	Exists(ctx context.Context, dedupKey string) (bool, error)
}

// Client wraps the asynq client and inspector behind the Enqueuer contract.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewClient(redisOpt asynq.RedisClientOpt) *Client {
	return &Client{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Enqueue schedules one execution trigger for the job. The dedup key
// guarantees at most one live trigger per id; retries are disabled at the
// queue level because a failed run is finalized in the job store.
func (c *Client) Enqueue(ctx context.Context, jobID int64, dedupKey, priority string, delay time.Duration) error {
	payload, err := json.Marshal(RunJobPayload{JobID: jobID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeRunJob, payload)
	opts := []asynq.Option{
		asynq.TaskID(dedupKey),
		asynq.Queue(QueueForPriority(priority)),
		asynq.MaxRetry(0),
	}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return ErrDuplicateTask
		}
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Cancel removes the queue entry if one is still present. A missing entry is
// not an error: the task may already have been pulled for execution.
func (c *Client) Cancel(ctx context.Context, dedupKey string) error {
	for _, queueName := range queueNames() {
		err := c.inspector.DeleteTask(queueName, dedupKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Exists reports whether a live queue entry exists for the dedup key. Used
// by the reconciliation sweep to detect orphaned store records.
func (c *Client) Exists(ctx context.Context, dedupKey string) (bool, error) {
	for _, queueName := range queueNames() {
		info, err := c.inspector.GetTaskInfo(queueName, dedupKey)
		if err == nil && info != nil {
			return true, nil
		}
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		if err != nil {
			slog.Info(err.Error())
			return false, err
		}
	}
	return false, nil
}
