package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/epicdm/campaignflow/internal/models"
)

type PostingWindowRepository interface {
	ListByBrand(ctx context.Context, brandID int64) ([]*models.PostingWindow, error)
}

type postingWindowRepository struct {
	db *sql.DB
}

func NewPostingWindowRepository(db *sql.DB) PostingWindowRepository {
	return &postingWindowRepository{db: db}
}

func (r *postingWindowRepository) ListByBrand(ctx context.Context, brandID int64) ([]*models.PostingWindow, error) {
	query := `
		SELECT id, tenant_id, brand_id, weekday, hour, minute, created_at
		FROM posting_windows
		WHERE brand_id = $1
		ORDER BY weekday, hour, minute
	`
	rows, err := r.db.QueryContext(ctx, query, brandID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var windows []*models.PostingWindow
	for rows.Next() {
		var w models.PostingWindow
		err := rows.Scan(&w.ID, &w.TenantID, &w.BrandID, &w.Weekday, &w.Hour, &w.Minute, &w.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		windows = append(windows, &w)
	}
	return windows, nil
}
