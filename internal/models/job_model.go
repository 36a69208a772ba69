package models

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"time"
)

type Job struct {
	ID          int64           `db:"id" json:"id"`
	TenantID    int64           `db:"tenant_id" json:"tenant_id"`
	BrandID     sql.NullInt64   `db:"brand_id" json:"brand_id"`
	JobType     string          `db:"job_type" json:"job_type"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Status      string          `db:"status" json:"status"`
	Priority    string          `db:"priority" json:"priority"`
	Attempts    int             `db:"attempts" json:"attempts"`
	MaxAttempts int             `db:"max_attempts" json:"max_attempts"`
	RunAt       time.Time       `db:"run_at" json:"run_at"`
	DedupKey    string          `db:"dedup_key" json:"dedup_key"`
	RetriedFrom sql.NullInt64   `db:"retried_from" json:"retried_from"`
	StartedAt   sql.NullTime    `db:"started_at" json:"started_at"`
	CompletedAt sql.NullTime    `db:"completed_at" json:"completed_at"`
	LastError   sql.NullString  `db:"last_error" json:"last_error"`
	Result      json.RawMessage `db:"result" json:"result"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

const (
	JobTypePublishPost     = "publish_post"
	JobTypeGenerateContent = "generate_content"
	JobTypeSyncAnalytics   = "sync_analytics"
	JobTypeBrandAudit      = "brand_audit"
	JobTypeCampaignLaunch  = "campaign_launch"
)

const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

const DefaultMaxAttempts = 3

// JobTypes returns the closed set of job types the dispatcher accepts.
func JobTypes() []string {
	return []string{
		JobTypePublishPost,
		JobTypeGenerateContent,
		JobTypeSyncAnalytics,
		JobTypeBrandAudit,
		JobTypeCampaignLaunch,
	}
}

func IsValidJobType(jobType string) bool {
	for _, t := range JobTypes() {
		if t == jobType {
			return true
		}
	}
	return false
}

func IsValidPriority(priority string) bool {
	return priority == PriorityHigh || priority == PriorityNormal || priority == PriorityLow
}

// IsTerminalJobStatus reports whether a job can no longer change state.
func IsTerminalJobStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled
}

// QueueKey is the execution-queue dedup key: the caller-supplied key when one
// was given, otherwise the store record id.
func (j *Job) QueueKey() string {
	if j.DedupKey != "" {
		return j.DedupKey
	}
	return strconv.FormatInt(j.ID, 10)
}
