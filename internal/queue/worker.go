package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/epicdm/campaignflow/internal/models"
	"github.com/epicdm/campaignflow/internal/repository"
	"github.com/epicdm/campaignflow/internal/telemetry"
)

// Runner executes one job type and returns an opaque result.
type Runner func(ctx context.Context, job *models.Job) (json.RawMessage, error)

// Worker consumes execution triggers and drives job rows through the
// pending -> running -> completed/failed lifecycle.
type Worker struct {
	jr      repository.JobRepository
	runners map[string]Runner
}

func NewWorker(jr repository.JobRepository) *Worker {
	return &Worker{
		jr:      jr,
		runners: make(map[string]Runner),
	}
}

// Register binds a runner to a job type. Types without a runner fail at
// execution time with an explicit error on the record.
func (w *Worker) Register(jobType string, runner Runner) {
	if jobType == "" || runner == nil {
		return
	}
	w.runners[jobType] = runner
}

func (w *Worker) HandleRunJobTask(ctx context.Context, task *asynq.Task) error {
	var payload RunJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	job, err := w.jr.GetByID(ctx, payload.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		slog.Info(fmt.Sprintf("job %d not found, dropping trigger", payload.JobID))
		return nil
	}

	// Cooperative cancel: a cancelled job is simply not re-dispatched.
	if job.Status == models.JobStatusCancelled {
		return nil
	}
	if job.Status != models.JobStatusPending {
		slog.Info(fmt.Sprintf("job %d is %s, dropping trigger", job.ID, job.Status))
		return nil
	}

	if job.Attempts >= job.MaxAttempts {
		return w.jr.MarkFailed(ctx, job.ID, "attempt ceiling reached")
	}

	if err := w.jr.MarkRunning(ctx, job.ID); err != nil {
		return err
	}

	runner, ok := w.runners[job.JobType]
	if !ok {
		telemetry.JobsFailed.WithLabelValues(job.JobType).Inc()
		return w.jr.MarkFailed(ctx, job.ID, fmt.Sprintf("no runner registered for job type %s", job.JobType))
	}

	result, err := runner(ctx, job)
	if err != nil {
		slog.Info(fmt.Sprintf("job %d (%s) failed: %v", job.ID, job.JobType, err))
		telemetry.JobsFailed.WithLabelValues(job.JobType).Inc()
		return w.jr.MarkFailed(ctx, job.ID, err.Error())
	}

	telemetry.JobsCompleted.WithLabelValues(job.JobType).Inc()
	return w.jr.MarkCompleted(ctx, job.ID, result)
}
