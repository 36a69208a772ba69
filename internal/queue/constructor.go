package queue

import (
	"errors"

	"github.com/epicdm/campaignflow/internal/models"
)

const TaskTypeRunJob = "jobs:run"

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// ErrDuplicateTask signals that the dedup key already has a live queue
// entry; the enqueue was a logical no-op.
var ErrDuplicateTask = errors.New("task already enqueued for this id")

type RunJobPayload struct {
	JobID int64 `json:"job_id"`
}

// QueueForPriority maps a job priority to an asynq queue name.
func QueueForPriority(priority string) string {
	switch priority {
	case models.PriorityHigh:
		return QueueCritical
	case models.PriorityLow:
		return QueueLow
	default:
		return QueueDefault
	}
}

// Queues returns the asynq queue weights. The server runs with strict
// priority, so critical items always dispatch before default and low.
func Queues() map[string]int {
	return map[string]int{
		QueueCritical: 6,
		QueueDefault:  3,
		QueueLow:      1,
	}
}

func queueNames() []string {
	return []string{QueueCritical, QueueDefault, QueueLow}
}
