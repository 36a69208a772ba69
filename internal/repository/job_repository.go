package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/epicdm/campaignflow/internal/models"
)

type JobFilter struct {
	Status  string
	JobType string
	BrandID int64
	Cursor  int64
	Limit   int
}

type JobRepository interface {
	Create(ctx context.Context, job *models.Job) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Job, error)
	GetForTenant(ctx context.Context, id, tenantID int64) (*models.Job, error)
	List(ctx context.Context, tenantID int64, filter JobFilter) ([]*models.Job, bool, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	MarkRunning(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id int64, result json.RawMessage) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	CountActive(ctx context.Context, tenantID int64, now time.Time) (int, error)
	CountQueued(ctx context.Context, tenantID int64) (int, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.Job, error)
}

type jobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) JobRepository {
	return &jobRepository{db: db}
}

const jobColumns = `id, tenant_id, brand_id, job_type, payload, status, priority, attempts, max_attempts, run_at, dedup_key, retried_from, started_at, completed_at, last_error, result, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*models.Job, error) {
	var job models.Job
	err := row.Scan(&job.ID, &job.TenantID, &job.BrandID, &job.JobType, &job.Payload,
		&job.Status, &job.Priority, &job.Attempts, &job.MaxAttempts, &job.RunAt,
		&job.DedupKey, &job.RetriedFrom, &job.StartedAt, &job.CompletedAt,
		&job.LastError, &job.Result, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) Create(ctx context.Context, job *models.Job) (int64, error) {
	query := `
		INSERT INTO jobs (tenant_id, brand_id, job_type, payload, status, priority, attempts, max_attempts, run_at, dedup_key, retried_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, job.TenantID, job.BrandID, job.JobType,
		job.Payload, job.Status, job.Priority, job.Attempts, job.MaxAttempts,
		job.RunAt, job.DedupKey, job.RetriedFrom).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *jobRepository) GetByID(ctx context.Context, id int64) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return job, nil
}

// GetForTenant returns nil when the row exists but belongs to another
// tenant; callers cannot distinguish that from a missing row.
func (r *jobRepository) GetForTenant(ctx context.Context, id, tenantID int64) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 AND tenant_id = $2`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return job, nil
}

func (r *jobRepository) List(ctx context.Context, tenantID int64, filter JobFilter) ([]*models.Job, bool, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE tenant_id = $1`
	args := []any{tenantID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.JobType != "" {
		args = append(args, filter.JobType)
		query += fmt.Sprintf(" AND job_type = $%d", len(args))
	}
	if filter.BrandID != 0 {
		args = append(args, filter.BrandID)
		query += fmt.Sprintf(" AND brand_id = $%d", len(args))
	}
	if filter.Cursor != 0 {
		args = append(args, filter.Cursor)
		query += fmt.Sprintf(" AND id < $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	// Fetch one extra row to learn whether more pages remain.
	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, false, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, false, err
		}
		jobs = append(jobs, job)
	}

	hasMore := len(jobs) > limit
	if hasMore {
		jobs = jobs[:limit]
	}
	return jobs, hasMore, nil
}

func (r *jobRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *jobRepository) MarkRunning(ctx context.Context, id int64) error {
	query := `
		UPDATE jobs
		SET status = $1,
			attempts = attempts + 1,
			started_at = $2,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, models.JobStatusRunning, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *jobRepository) MarkCompleted(ctx context.Context, id int64, result json.RawMessage) error {
	query := `
		UPDATE jobs
		SET status = $1,
			result = $2,
			completed_at = $3,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.JobStatusCompleted, result, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *jobRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE jobs
		SET status = $1,
			last_error = $2,
			completed_at = $3,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.JobStatusFailed, errorMessage, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// CountActive counts jobs that hold a concurrency slot right now: running
// jobs plus pending jobs whose run time has arrived.
func (r *jobRepository) CountActive(ctx context.Context, tenantID int64, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM jobs
		WHERE tenant_id = $1
		  AND (status = $2 OR (status = $3 AND run_at <= $4))
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, tenantID, models.JobStatusRunning, models.JobStatusPending, now).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}

func (r *jobRepository) CountQueued(ctx context.Context, tenantID int64) (int, error) {
	query := `SELECT COUNT(*) FROM jobs WHERE tenant_id = $1 AND status = $2`
	var count int
	err := r.db.QueryRowContext(ctx, query, tenantID, models.JobStatusPending).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}

func (r *jobRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 AND created_at <= $2 ORDER BY id ASC LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, models.JobStatusPending, cutoff, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
