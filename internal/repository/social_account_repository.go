package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/epicdm/campaignflow/internal/models"
)

type SocialAccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `
		SELECT id, tenant_id, platform, account_ref, account_name, account_username,
		       access_token, refresh_token, token_expires_at, account_status, created_at, updated_at
		FROM social_accounts WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var acc models.SocialAccount
	err := row.Scan(&acc.ID, &acc.TenantID, &acc.Platform, &acc.AccountRef, &acc.AccountName,
		&acc.AccountUsername, &acc.AccessToken, &acc.RefreshToken, &acc.TokenExpiresAt,
		&acc.AccountStatus, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &acc, nil
}
