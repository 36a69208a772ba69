package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/epicdm/campaignflow/configs"
	"github.com/epicdm/campaignflow/internal/models"
	"github.com/epicdm/campaignflow/internal/queue"
	"github.com/epicdm/campaignflow/internal/repository"
	"github.com/epicdm/campaignflow/internal/telemetry"
	"github.com/epicdm/campaignflow/internal/validator"
)

// EnqueueRequest carries one asynchronous work request into the producer.
type EnqueueRequest struct {
	JobType  string
	TenantID int64
	BrandID  int64
	Payload  json.RawMessage
	Priority string
	RunAt    time.Time
	DedupKey string
}

type JobService interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (*models.Job, error)
	Get(ctx context.Context, id, tenantID int64) (*models.Job, error)
	List(ctx context.Context, tenantID int64, filter repository.JobFilter) ([]*models.Job, bool, error)
	Cancel(ctx context.Context, id, tenantID int64) error
	Retry(ctx context.Context, id, tenantID int64) (*models.Job, error)
	Reconcile(ctx context.Context) error
}

type jobService struct {
	jr          repository.JobRepository
	br          repository.BrandRepository
	q           queue.Enqueuer
	maxActive   int
	maxQueued   int
	orphanGrace time.Duration
	now         func() time.Time
}

func NewJobService(jr repository.JobRepository, br repository.BrandRepository, q queue.Enqueuer, cfg config.Config) JobService {
	return &jobService{
		jr:          jr,
		br:          br,
		q:           q,
		maxActive:   cfg.MaxActiveJobs,
		maxQueued:   cfg.MaxQueuedJobs,
		orphanGrace: time.Duration(cfg.OrphanGraceSecs) * time.Second,
		now:         time.Now,
	}
}

func (s *jobService) Enqueue(ctx context.Context, req EnqueueRequest) (*models.Job, error) {
	return s.enqueue(ctx, req, 0)
}

// enqueue performs validate -> quota -> store write -> queue enqueue, in
// that order. Nothing is persisted before validation and quota pass.
func (s *jobService) enqueue(ctx context.Context, req EnqueueRequest, retriedFrom int64) (*models.Job, error) {
	if !models.IsValidJobType(req.JobType) {
		return nil, &validator.ValidationError{
			JobType: req.JobType,
			Fields:  []validator.FieldError{{Field: "job_type", Message: fmt.Sprintf("unknown job type %q", req.JobType)}},
		}
	}

	tenantID := req.TenantID
	if req.BrandID != 0 {
		// The brand's owner is authoritative, even when a tenant was also given.
		owner, err := s.br.GetOwner(ctx, req.BrandID)
		if err != nil {
			return nil, err
		}
		if owner == 0 {
			return nil, ErrNotFound
		}
		tenantID = owner
	}
	if tenantID == 0 {
		return nil, errors.New("tenant or brand reference required")
	}

	normalized, err := validator.Validate(req.JobType, req.Payload)
	if err != nil {
		return nil, err
	}

	now := s.now()
	active, err := s.jr.CountActive(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}
	if active >= s.maxActive {
		telemetry.QuotaRejections.WithLabelValues("active_jobs").Inc()
		return nil, &QuotaExceededError{Scope: "active_jobs", Current: active, Limit: s.maxActive}
	}

	queued, err := s.jr.CountQueued(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if queued >= s.maxQueued {
		telemetry.QuotaRejections.WithLabelValues("queued_jobs").Inc()
		return nil, &QuotaExceededError{Scope: "queued_jobs", Current: queued, Limit: s.maxQueued}
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !models.IsValidPriority(priority) {
		return nil, &validator.ValidationError{
			JobType: req.JobType,
			Fields:  []validator.FieldError{{Field: "priority", Message: fmt.Sprintf("unknown priority %q", priority)}},
		}
	}

	runAt := req.RunAt
	if runAt.IsZero() {
		runAt = now
	}

	job := &models.Job{
		TenantID:    tenantID,
		BrandID:     nullInt64(req.BrandID),
		JobType:     req.JobType,
		Payload:     normalized,
		Status:      models.JobStatusPending,
		Priority:    priority,
		MaxAttempts: models.DefaultMaxAttempts,
		RunAt:       runAt,
		DedupKey:    req.DedupKey,
		RetriedFrom: nullInt64(retriedFrom),
	}

	id, err := s.jr.Create(ctx, job)
	if err != nil {
		return nil, err
	}
	job.ID = id
	job.CreatedAt = now
	job.UpdatedAt = now

	delay := runAt.Sub(now)
	if delay < 0 {
		delay = 0
	}

	if err := s.q.Enqueue(ctx, id, job.QueueKey(), priority, delay); err != nil {
		if errors.Is(err, queue.ErrDuplicateTask) {
			// A second pending row on the same live key would double-execute
			// once the first trigger drains and the reconciler re-enqueues
			// the key, so the losing row is finalized immediately.
			slog.Info(fmt.Sprintf("job %d: queue entry for key %s already exists", id, job.QueueKey()))
			if uerr := s.jr.UpdateStatus(ctx, id, models.JobStatusCancelled); uerr != nil {
				slog.Info(uerr.Error())
			}
			return nil, ErrDuplicate
		}
		// The pending store row now has no execution trigger. The
		// reconciliation sweep detects and repairs these.
		slog.Error(fmt.Sprintf("job %d stored but enqueue failed: %v", id, err))
		return job, fmt.Errorf("job %d stored but enqueue failed: %w", id, err)
	}

	telemetry.JobsEnqueued.WithLabelValues(req.JobType).Inc()
	return job, nil
}

func (s *jobService) Get(ctx context.Context, id, tenantID int64) (*models.Job, error) {
	job, err := s.jr.GetForTenant(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	return job, nil
}

func (s *jobService) List(ctx context.Context, tenantID int64, filter repository.JobFilter) ([]*models.Job, bool, error) {
	return s.jr.List(ctx, tenantID, filter)
}

// Cancel transitions a non-terminal job to cancelled. The store status is
// authoritative; removing the queue entry is best effort.
func (s *jobService) Cancel(ctx context.Context, id, tenantID int64) error {
	job, err := s.jr.GetForTenant(ctx, id, tenantID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNotFound
	}
	if models.IsTerminalJobStatus(job.Status) {
		return ErrNotCancellable
	}

	if err := s.jr.UpdateStatus(ctx, id, models.JobStatusCancelled); err != nil {
		return err
	}

	if err := s.q.Cancel(ctx, job.QueueKey()); err != nil {
		slog.Info(fmt.Sprintf("job %d cancelled but queue removal failed: %v", id, err))
	}
	return nil
}

// Retry creates a new pending job from a failed one at high priority. The
// failed record is kept unmodified as history.
func (s *jobService) Retry(ctx context.Context, id, tenantID int64) (*models.Job, error) {
	job, err := s.jr.GetForTenant(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	if job.Status != models.JobStatusFailed {
		return nil, ErrNotRetryable
	}

	req := EnqueueRequest{
		JobType:  job.JobType,
		TenantID: job.TenantID,
		Payload:  job.Payload,
		Priority: models.PriorityHigh,
	}
	if job.BrandID.Valid {
		req.BrandID = job.BrandID.Int64
	}
	return s.enqueue(ctx, req, job.ID)
}

// Reconcile finds pending jobs past the grace period with no live queue
// entry and re-enqueues them; jobs that cannot be re-enqueued are failed
// with an explicit error so the inconsistency stays visible.
func (s *jobService) Reconcile(ctx context.Context) error {
	cutoff := s.now().Add(-s.orphanGrace)
	jobs, err := s.jr.ListPendingOlderThan(ctx, cutoff, 100)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		exists, err := s.q.Exists(ctx, job.QueueKey())
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		if exists {
			continue
		}

		delay := job.RunAt.Sub(s.now())
		if delay < 0 {
			delay = 0
		}
		err = s.q.Enqueue(ctx, job.ID, job.QueueKey(), job.Priority, delay)
		if err != nil && !errors.Is(err, queue.ErrDuplicateTask) {
			if ferr := s.jr.MarkFailed(ctx, job.ID, fmt.Sprintf("execution trigger lost and re-enqueue failed: %v", err)); ferr != nil {
				slog.Info(ferr.Error())
			}
			continue
		}

		telemetry.OrphansReconciled.Inc()
		slog.Info(fmt.Sprintf("re-enqueued orphaned job %d", job.ID))
	}
	return nil
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
