package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/epicdm/campaignflow/internal/models"
	"github.com/lib/pq"
)

type VariationRepository interface {
	GetByID(ctx context.Context, id int64) (*models.PostVariation, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostVariation, error)
	ListEligible(ctx context.Context, postID int64) ([]*models.PostVariation, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	MarkPublished(ctx context.Context, id int64, externalPostID, externalPostURL string) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
}

type variationRepository struct {
	db *sql.DB
}

func NewVariationRepository(db *sql.DB) VariationRepository {
	return &variationRepository{db: db}
}

const variationColumns = `id, post_id, tenant_id, platform, account_id, caption, media_keys, status, external_post_id, external_post_url, error_message, created_at, updated_at`

func scanVariation(row interface{ Scan(...any) error }) (*models.PostVariation, error) {
	var v models.PostVariation
	err := row.Scan(&v.ID, &v.PostID, &v.TenantID, &v.Platform, &v.AccountID, &v.Caption,
		pq.Array(&v.MediaKeys), &v.Status, &v.ExternalPostID, &v.ExternalPostURL,
		&v.ErrorMessage, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variationRepository) GetByID(ctx context.Context, id int64) (*models.PostVariation, error) {
	query := `SELECT ` + variationColumns + ` FROM post_variations WHERE id = $1`
	v, err := scanVariation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return v, nil
}

func (r *variationRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostVariation, error) {
	query := `SELECT ` + variationColumns + ` FROM post_variations WHERE post_id = $1 ORDER BY id ASC`
	return r.list(ctx, query, postID)
}

// ListEligible returns variations that can be dispatched: approved or
// scheduled, with a bound destination account.
func (r *variationRepository) ListEligible(ctx context.Context, postID int64) ([]*models.PostVariation, error) {
	query := `
		SELECT ` + variationColumns + ` FROM post_variations
		WHERE post_id = $1 AND status = ANY($2) AND account_id IS NOT NULL
		ORDER BY id ASC
	`
	return r.list(ctx, query, postID, pq.Array([]string{models.VariationStatusApproved, models.VariationStatusScheduled}))
}

func (r *variationRepository) list(ctx context.Context, query string, args ...any) ([]*models.PostVariation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var variations []*models.PostVariation
	for rows.Next() {
		v, err := scanVariation(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		variations = append(variations, v)
	}
	return variations, nil
}

func (r *variationRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE post_variations SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *variationRepository) MarkPublished(ctx context.Context, id int64, externalPostID, externalPostURL string) error {
	query := `
		UPDATE post_variations
		SET status = $1,
			external_post_id = $2,
			external_post_url = $3,
			error_message = NULL,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.VariationStatusPublished, externalPostID, externalPostURL, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *variationRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE post_variations
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.VariationStatusFailed, errorMessage, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
