package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/epicdm/campaignflow/internal/models"
)

type BrandRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Brand, error)
	GetOwner(ctx context.Context, brandID int64) (int64, error)
}

type brandRepository struct {
	db *sql.DB
}

func NewBrandRepository(db *sql.DB) BrandRepository {
	return &brandRepository{db: db}
}

func (r *brandRepository) GetByID(ctx context.Context, id int64) (*models.Brand, error) {
	query := `SELECT id, tenant_id, name, created_at FROM brands WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var brand models.Brand
	err := row.Scan(&brand.ID, &brand.TenantID, &brand.Name, &brand.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &brand, nil
}

// GetOwner resolves the tenant a brand belongs to; zero when the brand does
// not exist.
func (r *brandRepository) GetOwner(ctx context.Context, brandID int64) (int64, error) {
	query := `SELECT tenant_id FROM brands WHERE id = $1`

	var tenantID int64
	err := r.db.QueryRowContext(ctx, query, brandID).Scan(&tenantID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		slog.Info(err.Error())
		return 0, err
	}

	return tenantID, nil
}
