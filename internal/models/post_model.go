package models

import (
	"database/sql"
	"time"
)

type ScheduledPost struct {
	ID            int64     `db:"id" json:"id"`
	TenantID      int64     `db:"tenant_id" json:"tenant_id"`
	BrandID       int64     `db:"brand_id" json:"brand_id"`
	Caption       string    `db:"caption" json:"caption"`
	Title         string    `db:"title" json:"title"`
	ScheduledTime time.Time `db:"scheduled_time" json:"scheduled_time"`
	Approved      bool      `db:"approved" json:"approved"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

type PostVariation struct {
	ID              int64          `db:"id" json:"id"`
	PostID          int64          `db:"post_id" json:"post_id"`
	TenantID        int64          `db:"tenant_id" json:"tenant_id"`
	Platform        string         `db:"platform" json:"platform"`
	AccountID       sql.NullInt64  `db:"account_id" json:"account_id"`
	Caption         string         `db:"caption" json:"caption"`
	MediaKeys       []string       `db:"media_keys" json:"media_keys"`
	Status          string         `db:"status" json:"status"`
	ExternalPostID  sql.NullString `db:"external_post_id" json:"external_post_id"`
	ExternalPostURL sql.NullString `db:"external_post_url" json:"external_post_url"`
	ErrorMessage    sql.NullString `db:"error_message" json:"error_message"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

type PublishAttempt struct {
	ID              int64          `db:"id" json:"id"`
	TenantID        int64          `db:"tenant_id" json:"tenant_id"`
	VariationID     int64          `db:"variation_id" json:"variation_id"`
	Platform        string         `db:"platform" json:"platform"`
	Status          string         `db:"status" json:"status"`
	ExternalPostID  sql.NullString `db:"external_post_id" json:"external_post_id"`
	ExternalPostURL sql.NullString `db:"external_post_url" json:"external_post_url"`
	ErrorMessage    string         `db:"error_message" json:"error_message"`
	AttemptNumber   int            `db:"attempt_number" json:"attempt_number"`
	NextRetryAt     sql.NullTime   `db:"next_retry_at" json:"next_retry_at"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

const (
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)

const (
	VariationStatusApproved   = "approved"
	VariationStatusScheduled  = "scheduled"
	VariationStatusPublishing = "publishing"
	VariationStatusPublished  = "published"
	VariationStatusFailed     = "failed"
)

const (
	AttemptStatusSuccess     = "success"
	AttemptStatusFailed      = "failed"
	AttemptStatusRateLimited = "rate_limited"
)

// Retryable reports whether a variation can still be attempted.
func (v *PostVariation) Retryable() bool {
	return v.Status == VariationStatusApproved || v.Status == VariationStatusScheduled
}
