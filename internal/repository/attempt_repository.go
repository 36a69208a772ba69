package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/epicdm/campaignflow/internal/models"
)

// AttemptRepository is append-only: a retry records a new attempt row with a
// higher attempt number, existing rows are never mutated.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.PublishAttempt) (int64, error)
	LatestByVariation(ctx context.Context, variationID int64) (*models.PublishAttempt, error)
	ListDueRetries(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*models.PublishAttempt, error)
}

type attemptRepository struct {
	db *sql.DB
}

func NewAttemptRepository(db *sql.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

const attemptColumns = `id, tenant_id, variation_id, platform, status, external_post_id, external_post_url, error_message, attempt_number, next_retry_at, created_at`

func scanAttempt(row interface{ Scan(...any) error }) (*models.PublishAttempt, error) {
	var a models.PublishAttempt
	err := row.Scan(&a.ID, &a.TenantID, &a.VariationID, &a.Platform, &a.Status,
		&a.ExternalPostID, &a.ExternalPostURL, &a.ErrorMessage, &a.AttemptNumber,
		&a.NextRetryAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attemptRepository) Create(ctx context.Context, attempt *models.PublishAttempt) (int64, error) {
	query := `
		INSERT INTO publish_attempts (tenant_id, variation_id, platform, status, external_post_id, external_post_url, error_message, attempt_number, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, attempt.TenantID, attempt.VariationID,
		attempt.Platform, attempt.Status, attempt.ExternalPostID, attempt.ExternalPostURL,
		attempt.ErrorMessage, attempt.AttemptNumber, attempt.NextRetryAt).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *attemptRepository) LatestByVariation(ctx context.Context, variationID int64) (*models.PublishAttempt, error) {
	query := `
		SELECT ` + attemptColumns + ` FROM publish_attempts
		WHERE variation_id = $1
		ORDER BY attempt_number DESC
		LIMIT 1
	`
	attempt, err := scanAttempt(r.db.QueryRowContext(ctx, query, variationID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return attempt, nil
}

// ListDueRetries returns, per variation, the latest attempt when it is
// retryable and its retry time has arrived, ordered by retry time.
func (r *attemptRepository) ListDueRetries(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*models.PublishAttempt, error) {
	query := `
		SELECT ` + attemptColumns + ` FROM publish_attempts pa
		WHERE pa.attempt_number = (
			SELECT MAX(attempt_number) FROM publish_attempts WHERE variation_id = pa.variation_id
		)
		  AND pa.status IN ($1, $2)
		  AND pa.next_retry_at IS NOT NULL
		  AND pa.next_retry_at <= $3
		  AND pa.attempt_number < $4
		ORDER BY pa.next_retry_at ASC
		LIMIT $5
	`
	rows, err := r.db.QueryContext(ctx, query, models.AttemptStatusFailed, models.AttemptStatusRateLimited, now, maxAttempts, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.PublishAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}
